package service

import (
	"context"
	"errors"
	"time"

	"github.com/shashankxrm/deskdrop/internal/apperr"
	"github.com/shashankxrm/deskdrop/internal/cache"
	"github.com/shashankxrm/deskdrop/internal/models"
	"github.com/shashankxrm/deskdrop/internal/queue"
	"github.com/shashankxrm/deskdrop/internal/repository"
	"github.com/shashankxrm/deskdrop/internal/session"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reconciler flushes every queue that may hold links for a device once its
// channel is live: the device's own key, the owner's user key, and the keys of
// the owner's other paired devices (entries left behind by re-pairing).
//
// Known limitations: with several simultaneously paired receivers, a link
// queued for one of them can be delivered to whichever reconnects first. A
// device re-paired to another user keeps its key, so the new owner receives
// what the previous owner queued for it.
type Reconciler struct {
	devices  repository.DeviceRepositoryInterface
	links    repository.LinkRepositoryInterface
	sessions SessionTable
	queue    queue.Store
	history  *cache.LinkCache
	log      *zap.Logger
	now      func() time.Time
	users    *keyedMutex
}

func NewReconciler(
	devices repository.DeviceRepositoryInterface,
	links repository.LinkRepositoryInterface,
	sessions SessionTable,
	store queue.Store,
	history *cache.LinkCache,
	log *zap.Logger,
) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		devices:  devices,
		links:    links,
		sessions: sessions,
		queue:    store,
		history:  history,
		log:      log,
		now:      time.Now,
		users:    newKeyedMutex(),
	}
}

// drained is the snapshot taken from one key and how much of it was handled.
type drained struct {
	key     queue.Key
	entries []queue.Entry
	handled int
}

// OnDeviceConnected delivers everything queued for deviceID over its live
// channel and returns the number of links pushed. A channel that dies
// mid-drain is not an error: handled entries are acknowledged and the rest
// stay queued for the next reconnection. Only device lookup failures are
// returned.
func (r *Reconciler) OnDeviceConnected(ctx context.Context, deviceID string) (int, error) {
	device, err := r.devices.FindByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperr.NotFound("device not found")
		}
		return 0, apperr.Storage("find device", err)
	}
	log := r.log.With(zap.String("device_id", deviceID), zap.String("user_id", device.UserID))

	// Keys are shared between a user's devices, so one drain per user at a time.
	unlock := r.users.Lock(device.UserID)
	defer unlock()

	ch, ok := r.sessions.Get(deviceID)
	if !ok || !ch.Alive() {
		log.Debug("device not live, skipping reconciliation")
		return 0, nil
	}

	batches := r.snapshot(ctx, log, device)

	delivered := 0
	aborted := false
	for _, b := range batches {
		for i := range b.entries {
			pushed, ok := r.deliver(ctx, log, ch, b.entries[i])
			if !ok {
				aborted = true
				break
			}
			if pushed {
				delivered++
			}
			b.handled++
		}
		if aborted {
			break
		}
	}

	for _, b := range batches {
		if b.handled == 0 {
			continue
		}
		if err := r.queue.Ack(ctx, b.key, b.handled); err != nil {
			log.Error("ack drained entries", zap.String("queue_key", b.key.String()), zap.Int("count", b.handled), zap.Error(err))
		}
	}

	if delivered > 0 {
		if err := r.history.InvalidateHistory(ctx, device.UserID); err != nil {
			log.Debug("invalidate link history", zap.Error(err))
		}
	}
	if aborted {
		log.Warn("channel lost during reconciliation, remaining entries stay queued", zap.Int("delivered", delivered))
	} else if delivered > 0 {
		log.Info("reconciled queued links", zap.Int("delivered", delivered), zap.Int("keys", len(batches)))
	}
	return delivered, nil
}

// snapshot reads every candidate key. Keys that fail to read are skipped and
// left untouched.
func (r *Reconciler) snapshot(ctx context.Context, log *zap.Logger, device *models.Device) []*drained {
	keys := []queue.Key{queue.DeviceKey(device.DeviceID), queue.UserKey(device.UserID)}

	others, err := r.devices.FindAnyForUser(ctx, device.UserID)
	if err != nil {
		log.Warn("list user devices, draining own and user keys only", zap.Error(err))
	}
	for _, d := range others {
		if d.DeviceID != device.DeviceID {
			keys = append(keys, queue.DeviceKey(d.DeviceID))
		}
	}

	batches := make([]*drained, 0, len(keys))
	for _, key := range keys {
		entries, err := r.queue.Drain(ctx, key)
		if err != nil {
			log.Error("drain queue", zap.String("queue_key", key.String()), zap.Error(err))
			continue
		}
		if len(entries) > 0 {
			batches = append(batches, &drained{key: key, entries: entries})
		}
	}
	return batches
}

// deliver pushes one entry. It reports whether a push happened and whether the
// entry is handled; ok is false only when the channel failed.
func (r *Reconciler) deliver(ctx context.Context, log *zap.Logger, ch session.Channel, e queue.Entry) (pushed, ok bool) {
	if e.Invalid {
		return false, true
	}

	link, err := r.links.FindByID(ctx, e.LinkID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.Warn("queued link has no record, dropping", zap.String("link_id", e.LinkID))
		return false, true
	case err != nil:
		// Deliver anyway; a lookup failure must not strand the entry.
		log.Warn("load queued link", zap.String("link_id", e.LinkID), zap.Error(err))
	case link.Status != models.LinkPending:
		return false, true
	}

	ev := session.LinkEvent{URL: e.URL, LinkID: e.LinkID, Timestamp: e.Timestamp}
	if err := ch.Push(ctx, ev); err != nil {
		log.Warn("push queued link", zap.String("link_id", e.LinkID), zap.Error(apperr.Channel("push queued link", err)))
		return false, false
	}

	if _, err := r.links.MarkDelivered(ctx, e.LinkID, r.now()); err != nil {
		log.Error("mark queued link delivered", zap.String("link_id", e.LinkID), zap.Error(err))
	}
	return true, true
}
