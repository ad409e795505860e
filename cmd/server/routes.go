package main

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/shashankxrm/deskdrop/internal/config"
	"github.com/shashankxrm/deskdrop/internal/handlers"
	"github.com/shashankxrm/deskdrop/internal/httpx"
	"github.com/shashankxrm/deskdrop/internal/middleware"
	"go.uber.org/zap"
)

type routeHandlers struct {
	auth   *handlers.AuthHandler
	links  *handlers.LinkHandler
	device *handlers.DeviceHandler
	ws     *handlers.WebSocketHandler
	health *handlers.HealthHandler
}

func registerRoutes(app *fiber.App, cfg *config.Config, log *zap.Logger, h routeHandlers) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(requestLogger(log.Named("access")))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(cfg.AllowedOrigins),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Device-ID, " + middleware.CSRFHeader,
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: cfg.AllowedOrigins != "",
	}))

	api := app.Group("/api", middleware.OriginAllowed(cfg.AllowedOrigins))
	api.Get("/health", h.health.GetHealth)

	auth := api.Group("/auth", limiter.New(limiter.Config{
		Max:        20,
		Expiration: time.Minute,
	}))
	auth.Post("/register", h.auth.Register)
	auth.Post("/login", h.auth.Login)
	auth.Post("/refresh", h.auth.Refresh) // No CSRF required - protected by HttpOnly refresh token
	auth.Post("/logout", middleware.CSRFRequired(cfg.CSRFMode, cfg.AllowedOrigins), h.auth.Logout)

	protected := api.Group("/", middleware.AuthRequired(cfg.JWTSecret), middleware.CSRFRequired(cfg.CSRFMode, cfg.AllowedOrigins))
	protected.Get("/users/me", h.auth.GetCurrentUser)

	protected.Post("/links", limiter.New(limiter.Config{
		Max:        cfg.LinkRateLimit,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if uid, err := httpx.LocalString(c, "userID"); err == nil {
				return "links:" + uid
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return httpx.Error(c, fiber.StatusTooManyRequests, "rate_limited", "Too many links, slow down")
		},
	}), h.links.SubmitLink)
	protected.Get("/links", h.links.ListLinks)

	protected.Post("/devices/generate-pairing-token", h.device.GeneratePairingToken)
	protected.Post("/devices/pair", h.device.Pair)
	protected.Get("/devices", h.device.ListDevices)

	// Desktop devices authenticate with their pairing credential, not a user JWT.
	app.Use("/ws", middleware.OriginAllowed(cfg.AllowedOrigins), h.ws.Upgrade)
	app.Get("/ws", websocket.New(h.ws.HandleWebSocket))
}

func corsOrigins(allowed string) string {
	if allowed == "" {
		return "*"
	}
	return allowed
}

func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.Any("request_id", c.Locals("requestid")),
		)
		return err
	}
}
