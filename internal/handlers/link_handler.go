package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shashankxrm/deskdrop/internal/httpx"
	"github.com/shashankxrm/deskdrop/internal/service"
	"go.uber.org/zap"
)

type LinkHandler struct {
	linkService *service.LinkService
	log         *zap.Logger
}

func NewLinkHandler(linkService *service.LinkService, log *zap.Logger) *LinkHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LinkHandler{linkService: linkService, log: log}
}

type submitLinkInput struct {
	URL      string `json:"url"`
	DeviceID string `json:"deviceId"`
}

// SubmitLink handles POST /api/links.
func (h *LinkHandler) SubmitLink(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Authentication required")
	}

	var input submitLinkInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_body", "Invalid request body")
	}
	deviceID := strings.TrimSpace(input.DeviceID)
	if deviceID == "" {
		deviceID = strings.TrimSpace(c.Get("X-Device-ID"))
	}

	result, err := h.linkService.Submit(c.UserContext(), userID, deviceID, input.URL)
	if err != nil {
		h.log.Warn("submit link", zap.String("user_id", userID), zap.Error(err))
		return httpx.FromError(c, err)
	}

	message := "Link queued for delivery"
	if result.Delivered {
		message = "Link delivered"
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"linkId":    result.LinkID,
		"delivered": result.Delivered,
		"queued":    result.Queued,
		"message":   message,
	})
}

// ListLinks handles GET /api/links.
func (h *LinkHandler) ListLinks(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Authentication required")
	}

	links, err := h.linkService.ListLinks(c.UserContext(), userID, c.QueryInt("limit", service.DefaultHistoryLimit))
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"links": links})
}
