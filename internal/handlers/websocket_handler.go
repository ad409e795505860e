package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/shashankxrm/deskdrop/internal/handlers/ws"
	"github.com/shashankxrm/deskdrop/internal/httpx"
	"github.com/shashankxrm/deskdrop/internal/middleware"
	"github.com/shashankxrm/deskdrop/internal/service"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	deviceService *service.DeviceService
	dispatcher    *ws.Dispatcher
	opts          ws.Options
	log           *zap.Logger
}

func NewWebSocketHandler(deviceService *service.DeviceService, presence *service.PresenceService, opts ws.Options, log *zap.Logger) *WebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocketHandler{
		deviceService: deviceService,
		dispatcher:    ws.NewDispatcher(presence, deviceService, log),
		opts:          opts,
		log:           log,
	}
}

// Upgrade authenticates the device's pairing credential before the protocol
// switch, so rejected devices get a plain HTTP error.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	device, err := h.deviceService.FindByPairingCredential(c.UserContext(), middleware.DeviceCredential(c))
	if err != nil {
		return httpx.FromError(c, err)
	}
	c.Locals("deviceID", device.DeviceID)
	return c.Next()
}

func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	deviceID, _ := c.Locals("deviceID").(string)
	if deviceID == "" {
		_ = c.Close()
		return
	}

	conn := ws.NewConn(c, h.opts, h.log.With(zap.String("device_id", deviceID)))
	h.dispatcher.Run(context.Background(), deviceID, conn)
}
