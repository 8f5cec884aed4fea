package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"sitepulse/internal/config"
)

// DashboardAPIKeyAuth validates the dashboard API key.
// Expects: Authorization: Bearer <api_key>
func DashboardAPIKeyAuth(cfg *config.Config, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.DashboardAPIKey == "" {
			// No key configured means a local single-user deployment;
			// the dashboard stays open.
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Authorization header",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid Authorization header format. Expected: Bearer <api_key>",
			})
		}

		providedKey := strings.TrimPrefix(authHeader, "Bearer ")
		if providedKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "API key is empty",
			})
		}

		// Constant-time comparison to prevent timing attacks
		if !secureCompare(providedKey, cfg.DashboardAPIKey) {
			logger.Warn("Rejected dashboard request with invalid API key",
				slog.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		return c.Next()
	}
}

// secureCompare performs constant-time string comparison
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var result byte
	for i := 0; i < len(a); i++ {
		result |= a[i] ^ b[i]
	}
	return result == 0
}
