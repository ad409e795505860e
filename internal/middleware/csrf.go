package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shashankxrm/deskdrop/internal/httpx"
)

const (
	CSRFCookie = "dd_csrf"
	CSRFHeader = "X-DD-CSRF"
)

// CSRFRequired protects cookie-authenticated browser requests.
// Modes:
// - token: require X-DD-CSRF header to match dd_csrf cookie (default)
// - origin: only enforce Origin allow-list
// - off: disable checks
func CSRFRequired(mode, allowedOriginsCSV string) fiber.Handler {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "token"
	}
	allowed := parseOrigins(allowedOriginsCSV)

	return func(c *fiber.Ctx) error {
		if mode == "off" {
			return c.Next()
		}

		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		// Bearer-authenticated clients (the mobile app) carry no ambient credentials.
		if strings.HasPrefix(c.Get("Authorization"), "Bearer ") {
			return c.Next()
		}

		origin := strings.TrimSpace(c.Get("Origin"))
		if origin == "" {
			return c.Next()
		}

		if !allowed.allows(origin) {
			return httpx.Forbidden(c, "forbidden_origin", "Origin not allowed")
		}

		if mode == "origin" {
			return c.Next()
		}

		csrfCookie := c.Cookies(CSRFCookie)
		csrfHeader := c.Get(CSRFHeader)
		if csrfCookie == "" || csrfHeader == "" {
			return httpx.Forbidden(c, "csrf_required", "Missing CSRF token")
		}

		if subtle.ConstantTimeCompare([]byte(csrfCookie), []byte(csrfHeader)) != 1 {
			return httpx.Forbidden(c, "csrf_invalid", "Invalid CSRF token")
		}

		return c.Next()
	}
}
