package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shashankxrm/deskdrop/internal/httpx"
	"github.com/shashankxrm/deskdrop/internal/middleware"
	"github.com/shashankxrm/deskdrop/internal/service"
)

const (
	accessCookie  = "dd_access"
	refreshCookie = "dd_refresh"
)

type AuthHandler struct {
	authService  *service.AuthService
	cookieSecure bool
}

func NewAuthHandler(authService *service.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{authService: authService, cookieSecure: cookieSecure}
}

type refreshInput struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input service.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_body", "Invalid request body")
	}

	if input.Email == "" || input.Password == "" {
		return httpx.BadRequest(c, "missing_fields", "Email and password are required")
	}

	result, err := h.authService.Register(input)
	if err != nil {
		return httpx.FromError(c, err)
	}

	h.setSessionCookies(c, result)
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input service.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_body", "Invalid request body")
	}

	if input.Email == "" || input.Password == "" {
		return httpx.BadRequest(c, "missing_fields", "Email and password are required")
	}

	result, err := h.authService.Login(input)
	if err != nil {
		return httpx.FromError(c, err)
	}

	h.setSessionCookies(c, result)
	return c.JSON(result)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	result, err := h.authService.RefreshSession(h.refreshToken(c))
	if err != nil {
		h.clearSessionCookies(c)
		return httpx.FromError(c, err)
	}

	h.setSessionCookies(c, result)
	return c.JSON(result)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.authService.Logout(h.refreshToken(c)); err != nil {
		return httpx.FromError(c, err)
	}
	h.clearSessionCookies(c)
	return c.JSON(fiber.Map{"success": true})
}

func (h *AuthHandler) GetCurrentUser(c *fiber.Ctx) error {
	userID, err := httpx.LocalString(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	email, _ := c.Locals("email").(string)
	return c.JSON(fiber.Map{
		"id":    userID,
		"email": email,
	})
}

func (h *AuthHandler) refreshToken(c *fiber.Ctx) string {
	var input refreshInput
	if len(c.Body()) > 0 {
		_ = c.BodyParser(&input)
	}
	if input.RefreshToken != "" {
		return input.RefreshToken
	}
	return c.Cookies(refreshCookie)
}

func (h *AuthHandler) setSessionCookies(c *fiber.Ctx, s *service.AuthSession) {
	c.Cookie(&fiber.Cookie{
		Name:     accessCookie,
		Value:    s.AccessToken,
		Path:     "/",
		Expires:  s.AccessExpiresAt,
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    s.RefreshToken,
		Path:     "/api/auth",
		Expires:  s.RefreshExpiresAt,
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	// Readable by the dashboard so it can echo it in the CSRF header.
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CSRFCookie,
		Value:    uuid.NewString(),
		Path:     "/",
		Expires:  s.RefreshExpiresAt,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookies(c *fiber.Ctx) {
	past := time.Unix(0, 0)
	for _, name := range []string{accessCookie, refreshCookie, middleware.CSRFCookie} {
		path := "/"
		if name == refreshCookie {
			path = "/api/auth"
		}
		c.Cookie(&fiber.Cookie{Name: name, Value: "", Path: path, Expires: past, Secure: h.cookieSecure})
	}
}
