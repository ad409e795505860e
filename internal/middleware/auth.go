package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shashankxrm/deskdrop/internal/httpx"
	"github.com/shashankxrm/deskdrop/internal/service"
)

// AuthRequired accepts "Authorization: Bearer <jwt>" or the dd_access cookie
// and stores the caller's user id in Locals("userID").
func AuthRequired(jwtSecret string) fiber.Handler {
	secret := []byte(jwtSecret)
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		var tokenString string
		if authHeader != "" {
			// Extract token from "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return httpx.Unauthorized(c, "invalid_authorization", "Invalid authorization format")
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Cookies("dd_access")
		}

		if tokenString == "" {
			return httpx.Unauthorized(c, "missing_access_token", "Missing access token")
		}

		claims, err := service.ParseAccessToken(tokenString, secret)
		if err != nil {
			return httpx.Unauthorized(c, "invalid_access_token", "Invalid or expired token")
		}

		c.Locals("userID", claims.UserID)
		c.Locals("email", claims.Email)

		return c.Next()
	}
}

// DeviceCredential extracts a pairing credential from ?token= or
// "Authorization: Device <token>".
func DeviceCredential(c *fiber.Ctx) string {
	if t := strings.TrimSpace(c.Query("token")); t != "" {
		return t
	}
	parts := strings.SplitN(c.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Device" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
