package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LiveCounter reports how many devices have a live channel.
type LiveCounter interface {
	Count() int
}

// Check probes one dependency.
type Check func(ctx context.Context) error

type HealthHandler struct {
	sessions LiveCounter
	checks   map[string]Check
	log      *zap.Logger
}

func NewHealthHandler(sessions LiveCounter, checks map[string]Check, log *zap.Logger) *HealthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthHandler{sessions: sessions, checks: checks, log: log}
}

// GetHealth is public and cheap; a failing dependency degrades the status
// without failing the request.
// GET /api/health
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "ok"
	deps := make(fiber.Map, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			deps[name] = "down"
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	return c.JSON(fiber.Map{
		"status":       status,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"service":      "deskdrop",
		"liveDevices":  h.sessions.Count(),
		"dependencies": deps,
	})
}
