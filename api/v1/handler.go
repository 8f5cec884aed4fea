package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"sitepulse/internal/events"
	"sitepulse/internal/pkg/geoip"
	"sitepulse/internal/sites"
)

const errInternalServer = "Internal server error"

// CollectPageViewHandler ingests one tracking beacon. Validation
// failures are permanent client errors and come back as a 400 with
// per-field messages; only a failed event insert produces a 500.
func CollectPageViewHandler(ctx *cartridge.Context) error {
	input, err := events.ParsePageViewInput(ctx.Body())
	if err != nil {
		var invalid *events.InvalidInputError
		if errors.As(err, &invalid) {
			ctx.Logger.Debug("Rejected page view payload", slog.Any("fields", invalid.Fields))
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error":   "Invalid request data",
				"details": invalid.Fields,
			})
		}
		ctx.Logger.Error("Failed to validate page view payload", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": errInternalServer})
	}

	// Site ids are opaque keys here; unknown sites are still collected.
	// The registry only drives the dashboard filter.
	if active, err := sites.IsActive(ctx.DBManager.GetConnection(), input.SiteID); err == nil && !active {
		ctx.Logger.Debug("Collecting page view for unregistered or inactive site",
			slog.String("site_id", input.SiteID))
	}

	collectInput := &events.CollectInput{
		Input:     input,
		IPAddress: getClientIP(ctx.Ctx),
		Now:       time.Now().UTC(),
	}
	if err := events.Collect(ctx.DBManager, ctx.Logger, geoip.Default(), collectInput); err != nil {
		ctx.Logger.Error("Failed to collect page view", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": errInternalServer})
	}

	return ctx.JSON(fiber.Map{"success": true})
}

// PreflightHandler answers CORS preflights for the collector with no
// body; the CORS middleware attaches the headers.
func PreflightHandler(ctx *cartridge.Context) error {
	return ctx.SendStatus(http.StatusNoContent)
}
