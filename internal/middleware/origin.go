package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shashankxrm/deskdrop/internal/httpx"
)

// originList is a parsed ALLOWED_ORIGINS value. An empty list allows any
// origin.
type originList map[string]struct{}

func parseOrigins(csv string) originList {
	list := originList{}
	for _, o := range strings.Split(csv, ",") {
		if o = normalizeOrigin(o); o != "" {
			list[o] = struct{}{}
		}
	}
	return list
}

// normalizeOrigin makes "https://Dash.example.com/" and
// "https://dash.example.com" compare equal.
func normalizeOrigin(o string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
}

func (l originList) allows(origin string) bool {
	if len(l) == 0 {
		return true
	}
	_, ok := l[normalizeOrigin(origin)]
	return ok
}

// OriginAllowed rejects browser requests from origins outside the allow-list.
// Requests without an Origin header pass.
func OriginAllowed(allowedOriginsCSV string) fiber.Handler {
	allowed := parseOrigins(allowedOriginsCSV)
	return func(c *fiber.Ctx) error {
		origin := strings.TrimSpace(c.Get("Origin"))
		if origin == "" || allowed.allows(origin) {
			return c.Next()
		}
		return httpx.Forbidden(c, "forbidden_origin", "Origin not allowed")
	}
}
