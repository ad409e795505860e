// Package session tracks which devices have a live channel right now.
//
// The session table is the only source of truth for liveness; the persisted
// Device.IsOnline flag is a mirror that may be stale.
package session

import (
	"hash/fnv"
	"sync"

	"go.uber.org/zap"
)

const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// Manager is the in-memory session table, sharded by device id.
type Manager struct {
	shards [shardCount]*shard
	log    *zap.Logger
}

func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{log: log}
	for i := range m.shards {
		m.shards[i] = &shard{channels: make(map[string]Channel)}
	}
	return m
}

func (m *Manager) shardFor(deviceID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deviceID))
	return m.shards[h.Sum32()%shardCount]
}

// Bind makes ch the live channel for deviceID and returns the channel it
// replaced, if any. The caller owns closing the replaced channel.
func (m *Manager) Bind(deviceID string, ch Channel) Channel {
	s := m.shardFor(deviceID)
	s.mu.Lock()
	prev := s.channels[deviceID]
	s.channels[deviceID] = ch
	s.mu.Unlock()

	m.log.Info("device bound",
		zap.String("device_id", deviceID),
		zap.String("binding_id", ch.ID()),
		zap.Bool("replaced", prev != nil),
	)
	return prev
}

// Unbind removes whatever channel is bound to deviceID and returns it. Use
// Release when a newer binding may exist.
func (m *Manager) Unbind(deviceID string) Channel {
	s := m.shardFor(deviceID)
	s.mu.Lock()
	prev := s.channels[deviceID]
	delete(s.channels, deviceID)
	s.mu.Unlock()

	if prev != nil {
		m.log.Info("device unbound", zap.String("device_id", deviceID), zap.String("binding_id", prev.ID()))
	}
	return prev
}

// Release unbinds deviceID only if its current binding is bindingID. It
// reports whether anything was removed. A stale channel closing after the
// device reconnected must not tear down the newer binding.
func (m *Manager) Release(deviceID, bindingID string) bool {
	s := m.shardFor(deviceID)
	s.mu.Lock()
	cur, ok := s.channels[deviceID]
	if ok && cur.ID() == bindingID {
		delete(s.channels, deviceID)
	} else {
		ok = false
	}
	s.mu.Unlock()

	if ok {
		m.log.Info("device released", zap.String("device_id", deviceID), zap.String("binding_id", bindingID))
	}
	return ok
}

// Get returns the channel bound to deviceID.
func (m *Manager) Get(deviceID string) (Channel, bool) {
	s := m.shardFor(deviceID)
	s.mu.RLock()
	ch, ok := s.channels[deviceID]
	s.mu.RUnlock()
	return ch, ok
}

// IsLive reports whether deviceID has a bound channel that is still open.
// A bound but closed channel is evicted.
func (m *Manager) IsLive(deviceID string) bool {
	ch, ok := m.Get(deviceID)
	if !ok {
		return false
	}
	if ch.Alive() {
		return true
	}
	m.Release(deviceID, ch.ID())
	return false
}

// Count returns the number of bound devices.
func (m *Manager) Count() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.channels)
		s.mu.RUnlock()
	}
	return n
}

// DeviceIDs returns the ids of all bound devices, in no particular order.
func (m *Manager) DeviceIDs() []string {
	ids := make([]string, 0)
	for _, s := range m.shards {
		s.mu.RLock()
		for id := range s.channels {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
	}
	return ids
}
