package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "sitepulse/api/v1"
	"sitepulse/internal/config"
	"sitepulse/internal/http"
	"sitepulse/internal/http/middleware"
)

// publicCORSConfig is the permissive CORS setup for the collector: the
// beacon is posted from arbitrary third-party websites.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

// MountAppRoutes mounts all application routes using cartridge's route API.
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()

	// Rate limiting only in production; in development and test it
	// would interfere with harness traffic.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 70 req/min per IP absorbs legitimate beacon traffic while
	// keeping scripted abuse off the single sqlite writer.
	collectRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	collectConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{collectRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	dashboardConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{
			middleware.DashboardAPIKeyAuth(cfg, srv.GetLogger()),
		},
	}

	// === HEALTH ===
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === PUBLIC COLLECTOR ===
	srv.Post("/api/v1/collect", v1.CollectPageViewHandler, collectConfig)
	srv.Options("/api/v1/collect", v1.PreflightHandler, collectConfig)

	// === DASHBOARD API ===
	srv.Get("/api/v1/analytics/overview", http.OverviewAction, dashboardConfig)
	srv.Get("/api/v1/analytics/pages", http.PagesAction, dashboardConfig)
	srv.Get("/api/v1/analytics/referrers", http.ReferrersAction, dashboardConfig)
	srv.Get("/api/v1/analytics/locations", http.LocationsAction, dashboardConfig)
	srv.Get("/api/v1/analytics/devices", http.DevicesAction, dashboardConfig)
	srv.Get("/api/v1/analytics/timeline", http.TimelineAction, dashboardConfig)
	srv.Get("/api/v1/analytics/live", http.LiveAction, dashboardConfig)
	srv.Get("/api/v1/analytics/live/visitors", http.LiveVisitorsAction, dashboardConfig)
	srv.Get("/api/v1/analytics/dashboard", http.DashboardAction, dashboardConfig)
}
