package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shashankxrm/deskdrop/internal/cache"
	"github.com/shashankxrm/deskdrop/internal/config"
	"github.com/shashankxrm/deskdrop/internal/handlers"
	"github.com/shashankxrm/deskdrop/internal/handlers/ws"
	"github.com/shashankxrm/deskdrop/internal/queue"
	"github.com/shashankxrm/deskdrop/internal/service"
	"github.com/shashankxrm/deskdrop/internal/session"
	"github.com/shashankxrm/deskdrop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	app      *fiber.App
	devices  *testutil.MockDeviceRepository
	presence *service.PresenceService
}

func newTestServer(t *testing.T, cfg *config.Config, checks map[string]handlers.Check) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	devices := testutil.NewMockDeviceRepository()
	links := testutil.NewMockLinkRepository()
	sessions := session.NewManager(nil)
	store := queue.NewRedisStore(client, nil)
	history := cache.NewLinkCache(cache.NewRedisCacheFromClient(client), time.Minute)

	authService := service.NewAuthService(testutil.NewMockUserRepository(), testutil.NewMockRefreshTokenRepository(), cfg.JWTSecret, time.Minute, time.Hour, cfg.PasswordMinLength)
	reconciler := service.NewReconciler(devices, links, sessions, store, history, nil)
	linkService := service.NewLinkService(links, devices, sessions, store, reconciler, history, nil)
	presence := service.NewPresenceService(devices, sessions, reconciler, nil)
	deviceService := service.NewDeviceService(devices, sessions, reconciler, nil)

	app := fiber.New()
	registerRoutes(app, cfg, zap.NewNop(), routeHandlers{
		auth:   handlers.NewAuthHandler(authService, cfg.CookieSecure),
		links:  handlers.NewLinkHandler(linkService, nil),
		device: handlers.NewDeviceHandler(deviceService),
		ws:     handlers.NewWebSocketHandler(deviceService, presence, ws.Options{}, nil),
		health: handlers.NewHealthHandler(sessions, checks, nil),
	})

	return &testServer{app: app, devices: devices, presence: presence}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	testutil.NewTestHelper(t).SetupTestEnv()
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	return cfg
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "securepassword123",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	token, _ := body["accessToken"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestLinkFlowQueuedThenDelivered(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)
	token := s.register(t, "john@example.com")

	resp, body := s.do(t, http.MethodPost, "/api/devices/generate-pairing-token", token, map[string]string{"deviceName": "Office"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	deviceID := body["deviceId"].(string)
	require.NotEmpty(t, body["pairingToken"])

	resp, body = s.do(t, http.MethodPost, "/api/links", token, map[string]string{"url": "https://example.com/a"}, map[string]string{"X-Device-ID": "phone-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["queued"])
	assert.Equal(t, false, body["delivered"])
	assert.Equal(t, "Link queued for delivery", body["message"])
	queuedID := body["linkId"].(string)

	ch := testutil.NewFakeChannel()
	require.NoError(t, s.presence.Connected(context.Background(), deviceID, ch))
	assert.Equal(t, []string{queuedID}, ch.PushedIDs())

	resp, body = s.do(t, http.MethodPost, "/api/links", token, map[string]string{"url": "https://example.com/b", "deviceId": "phone-1"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["delivered"])
	assert.Equal(t, "Link delivered", body["message"])
	assert.Len(t, ch.PushedIDs(), 2)

	resp, body = s.do(t, http.MethodGet, "/api/links", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := body["links"].([]any)
	require.Len(t, history, 2)
	for _, l := range history {
		assert.Equal(t, "delivered", l.(map[string]any)["status"])
	}

	resp, body = s.do(t, http.MethodGet, "/api/devices", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["devices"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, true, list[0].(map[string]any)["isOnline"])
}

func TestSubmitLinkRejections(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)
	token := s.register(t, "john@example.com")

	tests := []struct {
		name   string
		token  string
		body   map[string]string
		status int
		code   string
	}{
		{"No auth", "", map[string]string{"url": "https://example.com", "deviceId": "phone-1"}, http.StatusUnauthorized, "missing_access_token"},
		{"Bad scheme", token, map[string]string{"url": "ftp://example.com", "deviceId": "phone-1"}, http.StatusBadRequest, "validation_failed"},
		{"Empty url", token, map[string]string{"url": "  ", "deviceId": "phone-1"}, http.StatusBadRequest, "validation_failed"},
		{"No source device", token, map[string]string{"url": "https://example.com"}, http.StatusBadRequest, "validation_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, http.MethodPost, "/api/links", tt.token, tt.body, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestSubmitLinkRateLimited(t *testing.T) {
	cfg := testConfig(t)
	cfg.LinkRateLimit = 2
	s := newTestServer(t, cfg, nil)
	token := s.register(t, "john@example.com")

	input := map[string]string{"url": "https://example.com", "deviceId": "phone-1"}
	for i := 0; i < 2; i++ {
		resp, _ := s.do(t, http.MethodPost, "/api/links", token, input, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := s.do(t, http.MethodPost, "/api/links", token, input, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", body["code"])
}

func TestCookieSessionNeedsCSRFToken(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)
	token := s.register(t, "john@example.com")

	send := func(csrf string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/devices/generate-pairing-token", nil)
		req.Header.Set("Origin", "https://dash.example.com")
		req.AddCookie(&http.Cookie{Name: "dd_access", Value: token})
		if csrf != "" {
			req.AddCookie(&http.Cookie{Name: "dd_csrf", Value: csrf})
			req.Header.Set("X-DD-CSRF", csrf)
		}
		resp, err := s.app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusForbidden, send(""))
	assert.Equal(t, http.StatusOK, send("csrf-value"))
}

func TestAuthRoutes(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)

	resp, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "john@example.com", "password": "securepassword123"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	refresh := body["refreshToken"].(string)

	resp, body = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "john@example.com", "password": "securepassword123"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", body["code"])

	resp, _ = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "john@example.com", "password": "wrongpassword1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "john@example.com", "password": "securepassword123"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	access := body["accessToken"].(string)

	resp, body = s.do(t, http.MethodGet, "/api/users/me", access, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "john@example.com", body["email"])

	resp, body = s.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": refresh}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rotated := body["refreshToken"].(string)
	assert.NotEqual(t, refresh, rotated)

	resp, _ = s.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": refresh}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/auth/logout", "", map[string]string{"refreshToken": rotated}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": rotated}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPairRoute(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)
	owner := s.register(t, "john@example.com")
	other := s.register(t, "jane@example.com")

	_, body := s.do(t, http.MethodPost, "/api/devices/generate-pairing-token", owner, nil, nil)
	pairing := body["pairingToken"].(string)

	resp, body := s.do(t, http.MethodPost, "/api/devices/pair", other, map[string]string{"pairingToken": pairing, "deviceName": "Home"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Home", body["deviceName"])

	resp, _ = s.do(t, http.MethodPost, "/api/devices/pair", other, map[string]string{"pairingToken": "unknown"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/devices/pair", other, map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "missing_fields", body["code"])
}

func TestHealthRoute(t *testing.T) {
	s := newTestServer(t, testConfig(t), map[string]handlers.Check{
		"redis": func(context.Context) error { return nil },
	})
	s.devices.Seed("desk-1", "user-1", time.Now())
	require.NoError(t, s.presence.Connected(context.Background(), "desk-1", testutil.NewFakeChannel()))

	resp, body := s.do(t, http.MethodGet, "/api/health", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "deskdrop", body["service"])
	assert.EqualValues(t, 1, body["liveDevices"])

	degraded := newTestServer(t, testConfig(t), map[string]handlers.Check{
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})
	resp, body = degraded.do(t, http.MethodGet, "/api/health", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"postgres": "down"}, body["dependencies"])
}

func TestWebSocketRouteRejectsBeforeUpgrade(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)
	s.devices.Seed("desk-1", "user-1", time.Now())

	resp, _ := s.do(t, http.MethodGet, "/ws?token="+testutil.SeedCredential("desk-1"), "", nil, nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)

	upgrade := map[string]string{
		"Connection":            "Upgrade",
		"Upgrade":               "websocket",
		"Sec-WebSocket-Version": "13",
		"Sec-WebSocket-Key":     "dGhlIHNhbXBsZSBub25jZQ==",
	}
	resp, body := s.do(t, http.MethodGet, "/ws?token=wrong", "", nil, upgrade)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["code"])

	resp, _ = s.do(t, http.MethodGet, "/ws", "", nil, upgrade)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
