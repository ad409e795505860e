package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shashankxrm/deskdrop/internal/cache"
	"github.com/shashankxrm/deskdrop/internal/queue"
	"github.com/shashankxrm/deskdrop/internal/session"
	"github.com/shashankxrm/deskdrop/internal/testutil"
	"github.com/stretchr/testify/require"
)

// harness wires the delivery core against in-memory repositories, a
// miniredis-backed queue and fake channels.
type harness struct {
	devices  *testutil.MockDeviceRepository
	links    *testutil.MockLinkRepository
	sessions *session.Manager
	store    *queue.RedisStore
	history  *cache.LinkCache
	mr       *miniredis.Miniredis

	reconciler *Reconciler
	linkSvc    *LinkService
	presence   *PresenceService
	deviceSvc  *DeviceService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &harness{
		devices:  testutil.NewMockDeviceRepository(),
		links:    testutil.NewMockLinkRepository(),
		sessions: session.NewManager(nil),
		store:    queue.NewRedisStore(client, nil),
		mr:       mr,
	}
	h.history = cache.NewLinkCache(cache.NewRedisCacheFromClient(client), time.Minute)
	h.reconciler = NewReconciler(h.devices, h.links, h.sessions, h.store, h.history, nil)
	h.linkSvc = NewLinkService(h.links, h.devices, h.sessions, h.store, h.reconciler, h.history, nil)
	h.presence = NewPresenceService(h.devices, h.sessions, h.reconciler, nil)
	h.deviceSvc = NewDeviceService(h.devices, h.sessions, h.reconciler, nil)
	return h
}

// connect binds a fresh fake channel for deviceID.
func (h *harness) connect(t *testing.T, deviceID string) *testutil.FakeChannel {
	t.Helper()
	ch := testutil.NewFakeChannel()
	require.NoError(t, h.presence.Connected(context.Background(), deviceID, ch))
	return ch
}

func (h *harness) queued(t *testing.T, key queue.Key) int {
	t.Helper()
	n, err := h.store.Len(context.Background(), key)
	require.NoError(t, err)
	return int(n)
}

func (h *harness) submit(t *testing.T, userID, url string) *SubmitResult {
	t.Helper()
	res, err := h.linkSvc.Submit(context.Background(), userID, "phone-1", url)
	require.NoError(t, err)
	return res
}

// steppingClock returns strictly increasing times.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}
