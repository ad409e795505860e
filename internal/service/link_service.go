package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shashankxrm/deskdrop/internal/apperr"
	"github.com/shashankxrm/deskdrop/internal/cache"
	"github.com/shashankxrm/deskdrop/internal/models"
	"github.com/shashankxrm/deskdrop/internal/queue"
	"github.com/shashankxrm/deskdrop/internal/repository"
	"github.com/shashankxrm/deskdrop/internal/session"
	"github.com/shashankxrm/deskdrop/internal/validation"
	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 50
)

// SubmitResult is the outcome of one submission. Exactly one of Delivered and
// Queued is true.
type SubmitResult struct {
	LinkID    string `json:"linkId"`
	Delivered bool   `json:"delivered"`
	Queued    bool   `json:"queued"`
}

// LinkService routes submitted links: deliver over a confirmed-live channel or
// queue durably for the next reconnection.
type LinkService struct {
	links      repository.LinkRepositoryInterface
	devices    repository.DeviceRepositoryInterface
	sessions   SessionTable
	queue      queue.Store
	reconciler *Reconciler
	history    *cache.LinkCache
	log        *zap.Logger
	now        func() time.Time
}

func NewLinkService(
	links repository.LinkRepositoryInterface,
	devices repository.DeviceRepositoryInterface,
	sessions SessionTable,
	store queue.Store,
	reconciler *Reconciler,
	history *cache.LinkCache,
	log *zap.Logger,
) *LinkService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LinkService{
		links:      links,
		devices:    devices,
		sessions:   sessions,
		queue:      store,
		reconciler: reconciler,
		history:    history,
		log:        log,
		now:        time.Now,
	}
}

// Submit persists the link, then delivers it to the first paired device with a
// live channel or queues it. Validation errors happen before anything is
// stored; storage errors abort and are returned; a failed push falls back to
// the queue and is not an error.
func (s *LinkService) Submit(ctx context.Context, userID, sourceDeviceID, rawURL string) (*SubmitResult, error) {
	rawURL = validation.NormalizeURL(rawURL)
	switch {
	case userID == "":
		return nil, apperr.Validation("user id is required")
	case sourceDeviceID == "":
		return nil, apperr.Validation("device id is required")
	case rawURL == "":
		return nil, apperr.Validation("url is required")
	case !validation.ValidateURL(rawURL):
		return nil, apperr.Validation("invalid url format")
	}

	link := &models.Link{
		ID:        uuid.NewString(),
		URL:       rawURL,
		UserID:    userID,
		DeviceID:  sourceDeviceID,
		Status:    models.LinkPending,
		CreatedAt: s.now(),
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, apperr.Storage("create link", err)
	}
	s.invalidateHistory(ctx, userID)

	log := s.log.With(zap.String("link_id", link.ID), zap.String("user_id", userID))

	result, err := s.route(ctx, log, link)
	if err != nil {
		// The link will never be routed by this submission; make that visible
		// in history instead of leaving it pending forever.
		if _, ferr := s.links.MarkFailed(ctx, link.ID); ferr != nil {
			log.Error("mark link failed", zap.Error(ferr))
		}
		return nil, err
	}
	return result, nil
}

func (s *LinkService) route(ctx context.Context, log *zap.Logger, link *models.Link) (*SubmitResult, error) {
	online, err := s.devices.FindOnlineForUser(ctx, link.UserID)
	if err != nil {
		return nil, apperr.Storage("find online devices", err)
	}

	var target *models.Device
	for i := range online {
		d := &online[i]
		if s.sessions.IsLive(d.DeviceID) {
			target = d
			break
		}
		s.healPresence(ctx, log, d)
	}

	if target != nil {
		if s.push(ctx, log, target.DeviceID, link) {
			return &SubmitResult{LinkID: link.ID, Delivered: true}, nil
		}
		// Push failed after the liveness check; queue for this device.
		return s.enqueue(ctx, log, link, queue.DeviceKey(target.DeviceID), target.DeviceID)
	}

	known, err := s.devices.FindAnyForUser(ctx, link.UserID)
	if err != nil {
		return nil, apperr.Storage("find paired devices", err)
	}
	if len(known) == 0 {
		log.Info("no paired device, queueing for user")
		return s.enqueue(ctx, log, link, queue.UserKey(link.UserID), "")
	}
	return s.enqueue(ctx, log, link, queue.DeviceKey(known[0].DeviceID), known[0].DeviceID)
}

// healPresence clears a stale online flag for a device whose channel is gone.
// It only touches the row while it still records the binding we saw.
func (s *LinkService) healPresence(ctx context.Context, log *zap.Logger, d *models.Device) {
	if d.ChannelBinding == nil {
		return
	}
	changed, err := s.devices.ClearPresence(ctx, d.DeviceID, *d.ChannelBinding, s.now())
	if err != nil {
		log.Warn("clear stale presence", zap.String("device_id", d.DeviceID), zap.Error(err))
		return
	}
	if changed {
		log.Info("corrected stale presence", zap.String("device_id", d.DeviceID))
		d.IsOnline = false
		d.ChannelBinding = nil
	}
}

// push sends the link down deviceID's channel. It returns false when the
// channel died after the liveness check; the caller then queues the link.
func (s *LinkService) push(ctx context.Context, log *zap.Logger, deviceID string, link *models.Link) bool {
	ch, ok := s.sessions.Get(deviceID)
	if !ok {
		return false
	}

	ev := session.LinkEvent{URL: link.URL, LinkID: link.ID, Timestamp: link.CreatedAt}
	if err := ch.Push(ctx, ev); err != nil {
		log.Warn("push failed, falling back to queue",
			zap.String("device_id", deviceID),
			zap.Error(apperr.Channel("push link", err)),
		)
		s.sessions.Release(deviceID, ch.ID())
		_ = ch.Close()
		if _, err := s.devices.ClearPresence(ctx, deviceID, ch.ID(), s.now()); err != nil {
			log.Warn("clear presence after failed push", zap.String("device_id", deviceID), zap.Error(err))
		}
		return false
	}

	if _, err := s.links.MarkDelivered(ctx, link.ID, s.now()); err != nil {
		// The device already has the link, so it must not be queued again.
		log.Error("mark delivered after push", zap.String("device_id", deviceID), zap.Error(err))
	}
	s.invalidateHistory(ctx, link.UserID)
	log.Info("link delivered", zap.String("device_id", deviceID))
	return true
}

func (s *LinkService) enqueue(ctx context.Context, log *zap.Logger, link *models.Link, key queue.Key, deviceID string) (*SubmitResult, error) {
	entry := queue.Entry{
		URL:       link.URL,
		LinkID:    link.ID,
		UserID:    link.UserID,
		Timestamp: link.CreatedAt,
	}
	if err := s.queue.Append(ctx, key, entry); err != nil {
		return nil, apperr.Storage("enqueue link", err)
	}
	log.Info("link queued", zap.String("queue_key", key.String()))

	// A device may have connected after we looked it up, and its
	// reconciliation may already be over. Drain again so the entry is not
	// stranded until the next reconnect.
	if live := s.lateTarget(ctx, log, link.UserID, deviceID); live != "" {
		if n, err := s.reconciler.OnDeviceConnected(ctx, live); err != nil {
			log.Warn("late reconciliation", zap.String("device_id", live), zap.Error(err))
		} else if n > 0 {
			log.Info("late reconciliation delivered", zap.String("device_id", live), zap.Int("count", n))
		}
	}
	return &SubmitResult{LinkID: link.ID, Queued: true}, nil
}

// lateTarget returns a live device that should drain again after an append,
// or "". Entries on the user key go to any paired device that came up since
// routing looked.
func (s *LinkService) lateTarget(ctx context.Context, log *zap.Logger, userID, deviceID string) string {
	if s.reconciler == nil {
		return ""
	}
	if deviceID != "" {
		if s.sessions.IsLive(deviceID) {
			return deviceID
		}
		return ""
	}

	paired, err := s.devices.FindAnyForUser(ctx, userID)
	if err != nil {
		log.Warn("recheck paired devices", zap.Error(err))
		return ""
	}
	for _, d := range paired {
		if s.sessions.IsLive(d.DeviceID) {
			return d.DeviceID
		}
	}
	return ""
}

// ListLinks returns the user's newest links first.
func (s *LinkService) ListLinks(ctx context.Context, userID string, limit int) ([]models.LinkResponse, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = DefaultHistoryLimit
	}

	if cached, ok := s.history.GetHistory(ctx, userID, limit); ok {
		return cached, nil
	}

	links, err := s.links.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Storage("list links", err)
	}
	out := make([]models.LinkResponse, len(links))
	for i := range links {
		out[i] = links[i].ToResponse()
	}
	if err := s.history.SetHistory(ctx, userID, limit, out); err != nil {
		s.log.Debug("cache link history", zap.String("user_id", userID), zap.Error(err))
	}
	return out, nil
}

func (s *LinkService) invalidateHistory(ctx context.Context, userID string) {
	if err := s.history.InvalidateHistory(ctx, userID); err != nil {
		s.log.Debug("invalidate link history", zap.String("user_id", userID), zap.Error(err))
	}
}
