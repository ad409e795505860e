package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shashankxrm/deskdrop/internal/apperr"
	"github.com/shashankxrm/deskdrop/internal/models"
	"github.com/shashankxrm/deskdrop/internal/queue"
	"github.com/shashankxrm/deskdrop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcilePreservesSubmissionOrder(t *testing.T) {
	h := newHarness(t)
	h.devices.Seed("desk-1", "user-1", time.Now())

	var want []string
	for _, u := range []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"} {
		want = append(want, h.submit(t, "user-1", u).LinkID)
	}

	ch := h.connect(t, "desk-1")
	assert.Equal(t, want, ch.PushedIDs())
}

func TestReconcileIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.devices.Seed("desk-1", "user-1", time.Now())
	h.submit(t, "user-1", "https://example.com/a")
	ch := h.connect(t, "desk-1")
	require.Len(t, ch.PushedIDs(), 1)

	n, err := h.reconciler.OnDeviceConnected(ctx, "desk-1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, ch.PushedIDs(), 1)
}

func TestReconcileStopsOnChannelFailureAndKeepsRemainder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.devices.Seed("desk-1", "user-1", time.Now())

	var ids []string
	for _, u := range []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"} {
		ids = append(ids, h.submit(t, "user-1", u).LinkID)
	}

	flaky := testutil.NewFakeChannel().FailAfter(1)
	require.NoError(t, h.presence.Connected(ctx, "desk-1", flaky))

	assert.Equal(t, ids[:1], flaky.PushedIDs())
	assert.Equal(t, 2, h.queued(t, queue.DeviceKey("desk-1")))
	assert.Equal(t, models.LinkDelivered, h.links.Status(ids[0]))
	assert.Equal(t, models.LinkPending, h.links.Status(ids[1]))

	ch := h.connect(t, "desk-1")
	assert.Equal(t, ids[1:], ch.PushedIDs())
	assert.Zero(t, h.queued(t, queue.DeviceKey("desk-1")))
}

func TestReconcileSkipsDeliveredMissingAndInvalidEntries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.devices.Seed("desk-1", "user-1", time.Now())
	key := queue.DeviceKey("desk-1")

	fx := testutil.NewTestHelper(t)
	done := fx.CreateTestLink("done", "user-1", "https://example.com/done")
	done.Status = models.LinkDelivered
	pending := fx.CreateTestLink("pending", "user-1", "https://example.com/p")
	require.NoError(t, h.links.Create(ctx, done))
	require.NoError(t, h.links.Create(ctx, pending))

	require.NoError(t, h.store.Append(ctx, key, queue.Entry{URL: done.URL, LinkID: done.ID, UserID: "user-1"}))
	require.NoError(t, h.store.Append(ctx, key, queue.Entry{URL: "https://example.com/x", LinkID: "missing", UserID: "user-1"}))
	_, err := h.mr.Push(key.String(), "{corrupt")
	require.NoError(t, err)
	require.NoError(t, h.store.Append(ctx, key, queue.Entry{URL: pending.URL, LinkID: pending.ID, UserID: "user-1"}))

	ch := h.connect(t, "desk-1")

	assert.Equal(t, []string{"pending"}, ch.PushedIDs())
	assert.Zero(t, h.queued(t, key))
}

func TestReconcileDrainsOtherDeviceKeysOfUser(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.devices.Seed("desk-a", "user-1", now.Add(-time.Hour))
	h.devices.Seed("desk-b", "user-1", now)

	res := h.submit(t, "user-1", "https://example.com/a")
	require.Equal(t, 1, h.queued(t, queue.DeviceKey("desk-b")))

	ch := h.connect(t, "desk-a")

	assert.Equal(t, []string{res.LinkID}, ch.PushedIDs())
	assert.Zero(t, h.queued(t, queue.DeviceKey("desk-b")))
}

func TestReconcileLeavesOtherUsersQueues(t *testing.T) {
	h := newHarness(t)
	h.devices.Seed("desk-1", "user-1", time.Now())
	h.submit(t, "user-2", "https://example.com/theirs")

	ch := h.connect(t, "desk-1")

	assert.Empty(t, ch.PushedIDs())
	assert.Equal(t, 1, h.queued(t, queue.UserKey("user-2")))
}

func TestReconcileWithoutLiveChannelIsNoop(t *testing.T) {
	h := newHarness(t)
	h.devices.Seed("desk-1", "user-1", time.Now())
	h.submit(t, "user-1", "https://example.com/a")

	n, err := h.reconciler.OnDeviceConnected(context.Background(), "desk-1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, h.queued(t, queue.DeviceKey("desk-1")))
}

func TestReconcileUnknownDevice(t *testing.T) {
	h := newHarness(t)
	_, err := h.reconciler.OnDeviceConnected(context.Background(), "ghost")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestReconcileDeliversWhenLinkLookupFails(t *testing.T) {
	h := newHarness(t)
	h.devices.Seed("desk-1", "user-1", time.Now())
	res := h.submit(t, "user-1", "https://example.com/a")
	h.links.FindErr = errors.New("db down")

	ch := h.connect(t, "desk-1")

	assert.Equal(t, []string{res.LinkID}, ch.PushedIDs())
	assert.Zero(t, h.queued(t, queue.DeviceKey("desk-1")))
}

func TestReconcileDrainsDeviceAndUserKeysOnOneConnect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	early := h.submit(t, "user-1", "https://example.com/before-pairing")
	require.Equal(t, 1, h.queued(t, queue.UserKey("user-1")))

	tok, err := h.deviceSvc.GeneratePairingToken(ctx, "user-1", "Office")
	require.NoError(t, err)
	late := h.submit(t, "user-1", "https://example.com/after-pairing")
	require.Equal(t, 1, h.queued(t, queue.DeviceKey(tok.DeviceID)))

	ch := h.connect(t, tok.DeviceID)

	assert.ElementsMatch(t, []string{early.LinkID, late.LinkID}, ch.PushedIDs())
	assert.Equal(t, models.LinkDelivered, h.links.Status(early.LinkID))
	assert.Equal(t, models.LinkDelivered, h.links.Status(late.LinkID))
	assert.Zero(t, h.queued(t, queue.UserKey("user-1")))
	assert.Zero(t, h.queued(t, queue.DeviceKey(tok.DeviceID)))
}

func TestReconcileChannelLossInSecondKeyAcksFirstKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.devices.Seed("desk-1", "user-1", time.Now())

	var deviceIDs []string
	for _, u := range []string{"https://example.com/d1", "https://example.com/d2"} {
		deviceIDs = append(deviceIDs, h.submit(t, "user-1", u).LinkID)
	}

	fx := testutil.NewTestHelper(t)
	var userIDs []string
	for i, u := range []string{"https://example.com/u1", "https://example.com/u2"} {
		l := fx.CreateTestLink(fmt.Sprintf("user-link-%d", i), "user-1", u)
		require.NoError(t, h.links.Create(ctx, l))
		require.NoError(t, h.store.Append(ctx, queue.UserKey("user-1"), queue.Entry{URL: l.URL, LinkID: l.ID, UserID: "user-1"}))
		userIDs = append(userIDs, l.ID)
	}

	flaky := testutil.NewFakeChannel().FailAfter(3)
	require.NoError(t, h.presence.Connected(ctx, "desk-1", flaky))

	assert.Equal(t, append(append([]string{}, deviceIDs...), userIDs[0]), flaky.PushedIDs())
	assert.Zero(t, h.queued(t, queue.DeviceKey("desk-1")))
	assert.Equal(t, 1, h.queued(t, queue.UserKey("user-1")))
	assert.Equal(t, models.LinkDelivered, h.links.Status(userIDs[0]))
	assert.Equal(t, models.LinkPending, h.links.Status(userIDs[1]))

	ch := h.connect(t, "desk-1")
	assert.Equal(t, userIDs[1:], ch.PushedIDs())
	assert.Zero(t, h.queued(t, queue.UserKey("user-1")))
}

func TestReconcileAfterRePairingDeliversDeviceBacklogToNewOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tok, err := h.deviceSvc.GeneratePairingToken(ctx, "user-1", "Office")
	require.NoError(t, err)
	res := h.submit(t, "user-1", "https://example.com/a")
	require.True(t, res.Queued)

	_, err = h.deviceSvc.Pair(ctx, "user-2", tok.PairingToken, "Home")
	require.NoError(t, err)
	ch := h.connect(t, tok.DeviceID)

	assert.Equal(t, "user-2", h.devices.Get(tok.DeviceID).UserID)
	assert.Equal(t, []string{res.LinkID}, ch.PushedIDs())
	assert.Equal(t, models.LinkDelivered, h.links.Status(res.LinkID))
	assert.Zero(t, h.queued(t, queue.DeviceKey(tok.DeviceID)))
}
