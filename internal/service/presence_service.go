package service

import (
	"context"
	"time"

	"github.com/shashankxrm/deskdrop/internal/apperr"
	"github.com/shashankxrm/deskdrop/internal/repository"
	"github.com/shashankxrm/deskdrop/internal/session"
	"go.uber.org/zap"
)

// PresenceService turns channel lifecycle events into session table and
// device row updates.
type PresenceService struct {
	devices    repository.DeviceRepositoryInterface
	sessions   SessionTable
	reconciler *Reconciler
	log        *zap.Logger
	now        func() time.Time
}

func NewPresenceService(
	devices repository.DeviceRepositoryInterface,
	sessions SessionTable,
	reconciler *Reconciler,
	log *zap.Logger,
) *PresenceService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PresenceService{
		devices:    devices,
		sessions:   sessions,
		reconciler: reconciler,
		log:        log,
		now:        time.Now,
	}
}

// Connected binds ch as the device's live channel, records presence and
// flushes queued links. A channel it replaces is closed. If presence cannot be
// recorded the binding is undone and a storage error returned.
func (p *PresenceService) Connected(ctx context.Context, deviceID string, ch session.Channel) error {
	log := p.log.With(zap.String("device_id", deviceID), zap.String("binding_id", ch.ID()))

	if prev := p.sessions.Bind(deviceID, ch); prev != nil && prev.ID() != ch.ID() {
		log.Info("replacing previous channel", zap.String("previous_binding_id", prev.ID()))
		_ = prev.Close()
	}

	bindingID := ch.ID()
	if err := p.devices.UpdatePresence(ctx, deviceID, true, &bindingID, p.now()); err != nil {
		p.sessions.Release(deviceID, bindingID)
		return apperr.Storage("record presence", err)
	}

	if p.reconciler == nil {
		return nil
	}
	n, err := p.reconciler.OnDeviceConnected(ctx, deviceID)
	if err != nil {
		// Queued links stay queued; the next connect retries.
		log.Warn("reconcile on connect", zap.Error(err))
		return nil
	}
	if n > 0 {
		log.Info("delivered queued links on connect", zap.Int("count", n))
	}
	return nil
}

// Disconnected drops ch's binding. Nothing changes if the device has since
// bound a newer channel.
func (p *PresenceService) Disconnected(ctx context.Context, deviceID string, ch session.Channel) {
	log := p.log.With(zap.String("device_id", deviceID), zap.String("binding_id", ch.ID()))

	if !p.sessions.Release(deviceID, ch.ID()) {
		log.Debug("stale disconnect ignored")
	}
	changed, err := p.devices.ClearPresence(ctx, deviceID, ch.ID(), p.now())
	if err != nil {
		log.Warn("clear presence", zap.Error(err))
		return
	}
	if changed {
		log.Info("device offline")
	}
}

// DisconnectAll unbinds and closes every live channel and clears its stored
// presence. It runs on shutdown so online flags do not outlive the process,
// and returns the number of channels closed.
func (p *PresenceService) DisconnectAll(ctx context.Context) int {
	n := 0
	for _, deviceID := range p.sessions.DeviceIDs() {
		ch := p.sessions.Unbind(deviceID)
		if ch == nil {
			continue
		}
		_ = ch.Close()
		if _, err := p.devices.ClearPresence(ctx, deviceID, ch.ID(), p.now()); err != nil {
			p.log.Warn("clear presence on shutdown", zap.String("device_id", deviceID), zap.Error(err))
		}
		n++
	}
	return n
}
