package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shashankxrm/deskdrop/internal/httpx"
	"github.com/shashankxrm/deskdrop/internal/service"
)

type DeviceHandler struct {
	deviceService *service.DeviceService
}

func NewDeviceHandler(deviceService *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{deviceService: deviceService}
}

type generatePairingInput struct {
	DeviceName string `json:"deviceName"`
}

type pairInput struct {
	PairingToken string `json:"pairingToken"`
	DeviceName   string `json:"deviceName"`
}

func (h *DeviceHandler) GeneratePairingToken(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Authentication required")
	}

	var input generatePairingInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return httpx.BadRequest(c, "invalid_body", "Invalid request body")
		}
	}

	tok, err := h.deviceService.GeneratePairingToken(c.UserContext(), userID, input.DeviceName)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"deviceId":     tok.DeviceID,
		"pairingToken": tok.PairingToken,
		"message":      "Pairing token generated successfully",
	})
}

func (h *DeviceHandler) Pair(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Authentication required")
	}

	var input pairInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_body", "Invalid request body")
	}
	if input.PairingToken == "" {
		return httpx.BadRequest(c, "missing_fields", "Pairing token is required")
	}

	device, err := h.deviceService.Pair(c.UserContext(), userID, input.PairingToken, input.DeviceName)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"deviceId":   device.DeviceID,
		"deviceName": device.DeviceName,
		"message":    "Device paired successfully",
	})
}

func (h *DeviceHandler) ListDevices(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Authentication required")
	}

	devices, err := h.deviceService.ListDevices(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}
	return c.JSON(fiber.Map{"devices": devices})
}
