// Package http holds the dashboard-facing handlers. Handlers parse the
// query scope, delegate to the analytics package, and shape JSON; no
// aggregation logic lives here.
package http

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"sitepulse/internal/analytics"
	"sitepulse/internal/config"
	"sitepulse/internal/pkg/async"
	"sitepulse/internal/presence"
	"sitepulse/internal/sites"
	"sitepulse/internal/timeframe"
)

// queryScope is the resolved range/site/timezone triple shared by all
// aggregation endpoints.
type queryScope struct {
	params analytics.QueryParams
	rng    *timeframe.Range
}

func parseScope(ctx *cartridge.Context) (*queryScope, error) {
	loc := time.UTC
	if tz := ctx.Query("tz", ""); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "invalid timezone")
		}
		loc = parsed
	}

	rng, err := timeframe.Parse(ctx.Query("range", ""), time.Now().UTC(), loc)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	siteID := ctx.Query("siteId", "")
	if siteID != "" {
		// A registered but deactivated site disappears from the
		// dashboard; ids the registry has never seen pass through as
		// opaque keys.
		site, err := sites.GetSiteByPublicID(ctx.DBManager.GetConnection(), siteID)
		if err == nil && !site.Active {
			return nil, fiber.NewError(fiber.StatusNotFound, "site is not active")
		}
	}

	return &queryScope{
		params: analytics.QueryParams{SiteID: siteID, From: rng.From, To: rng.To},
		rng:    rng,
	}, nil
}

func handleScopeError(ctx *cartridge.Context, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func handleQueryError(ctx *cartridge.Context, err error) error {
	if errors.Is(err, analytics.ErrUnknownDimension) {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	ctx.Logger.Error("Analytics query failed", slog.Any("error", err))
	return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

// OverviewAction returns the headline metrics for the scope.
func OverviewAction(ctx *cartridge.Context) error {
	scope, err := parseScope(ctx)
	if err != nil {
		return handleScopeError(ctx, err)
	}

	metrics, err := analytics.Overview(ctx.DBManager.GetConnection(), scope.params)
	if err != nil {
		return handleQueryError(ctx, err)
	}
	return ctx.JSON(metrics)
}

func breakdownAction(ctx *cartridge.Context, resolve func(string) (analytics.Dimension, error)) error {
	scope, err := parseScope(ctx)
	if err != nil {
		return handleScopeError(ctx, err)
	}

	dim, err := resolve(ctx.Query("type", ""))
	if err != nil {
		return handleQueryError(ctx, err)
	}

	results, err := analytics.TopBreakdown(ctx.DBManager.GetConnection(), scope.params, dim)
	if err != nil {
		return handleQueryError(ctx, err)
	}
	return ctx.JSON(results)
}

// PagesAction returns the top pages breakdown (path, hostname, entry
// or exit variant).
func PagesAction(ctx *cartridge.Context) error {
	return breakdownAction(ctx, analytics.PageDimension)
}

// ReferrersAction returns the referrer, channel, campaign, or keyword
// breakdown.
func ReferrersAction(ctx *cartridge.Context) error {
	return breakdownAction(ctx, analytics.ReferrerDimension)
}

// LocationsAction returns the country, region, or city breakdown.
func LocationsAction(ctx *cartridge.Context) error {
	return breakdownAction(ctx, analytics.LocationDimension)
}

// DevicesAction returns the device, browser, or OS share breakdown.
func DevicesAction(ctx *cartridge.Context) error {
	return breakdownAction(ctx, analytics.DeviceDimension)
}

// TimeSeriesPoint is one timeline entry in the dashboard's shape.
type TimeSeriesPoint struct {
	Date     string `json:"date"`
	Visitors int    `json:"visitors"`
}

func toTimeSeries(stats []timeframe.DateStat) []TimeSeriesPoint {
	points := make([]TimeSeriesPoint, len(stats))
	for i, stat := range stats {
		points[i] = TimeSeriesPoint{Date: stat.Date, Visitors: stat.Count}
	}
	return points
}

// TimelineAction returns gap-filled visitor counts per bucket.
func TimelineAction(ctx *cartridge.Context) error {
	scope, err := parseScope(ctx)
	if err != nil {
		return handleScopeError(ctx, err)
	}

	stats, err := analytics.Timeline(ctx.DBManager.GetConnection(), scope.params, scope.rng)
	if err != nil {
		return handleQueryError(ctx, err)
	}
	return ctx.JSON(toTimeSeries(stats))
}

// LiveAction returns the current live visitor count.
func LiveAction(ctx *cartridge.Context) error {
	cfg := config.GetConfig()
	count, err := presence.CountLive(
		ctx.DBManager.GetConnection(),
		ctx.Query("siteId", ""),
		time.Now().UTC(),
		cfg.PresenceWindow(),
	)
	if err != nil {
		return handleQueryError(ctx, err)
	}
	return ctx.JSON(fiber.Map{"visitorsNow": count})
}

// LiveVisitor is one row of the live visitor feed.
type LiveVisitor struct {
	VisitorID   string    `json:"visitorId"`
	LastSeen    time.Time `json:"lastSeen"`
	CurrentPath string    `json:"currentPath"`
	CountryCode string    `json:"countryCode,omitempty"`
	City        string    `json:"city,omitempty"`
	Latitude    float64   `json:"latitude,omitempty"`
	Longitude   float64   `json:"longitude,omitempty"`
	DeviceType  string    `json:"deviceType,omitempty"`
}

// LiveVisitorsAction returns the live visitor snapshot used by the
// real-time map.
func LiveVisitorsAction(ctx *cartridge.Context) error {
	cfg := config.GetConfig()
	rows, err := presence.LiveVisitors(
		ctx.DBManager.GetConnection(),
		ctx.Query("siteId", ""),
		time.Now().UTC(),
		cfg.PresenceWindow(),
		100,
	)
	if err != nil {
		return handleQueryError(ctx, err)
	}

	visitors := make([]LiveVisitor, len(rows))
	for i, row := range rows {
		visitors[i] = LiveVisitor{
			VisitorID:   row.VisitorID,
			LastSeen:    row.LastSeen,
			CurrentPath: row.CurrentPath,
			CountryCode: row.CountryCode,
			City:        row.City,
			Latitude:    row.Latitude,
			Longitude:   row.Longitude,
			DeviceType:  row.DeviceType,
		}
	}
	return ctx.JSON(visitors)
}

// DashboardResponse bundles the headline widgets into one payload so
// the dashboard renders with a single request.
type DashboardResponse struct {
	Overview     *analytics.OverviewMetrics    `json:"overview"`
	Timeline     []TimeSeriesPoint             `json:"timeline"`
	TopPages     []analytics.MetricCountResult `json:"topPages"`
	TopReferrers []analytics.MetricCountResult `json:"topReferrers"`
	TopCountries []analytics.MetricCountResult `json:"topCountries"`
	TopDevices   []analytics.MetricCountResult `json:"topDevices"`
	VisitorsNow  int64                         `json:"visitorsNow"`
}

// DashboardAction fans the headline queries out over a worker pool and
// assembles the combined response.
func DashboardAction(ctx *cartridge.Context) error {
	scope, err := parseScope(ctx)
	if err != nil {
		return handleScopeError(ctx, err)
	}

	db := ctx.DBManager.GetConnection()
	cfg := config.GetConfig()
	now := time.Now().UTC()

	breakdown := func(resolve func(string) (analytics.Dimension, error)) func() (interface{}, error) {
		return func() (interface{}, error) {
			dim, err := resolve("")
			if err != nil {
				return nil, err
			}
			return analytics.TopBreakdown(db, scope.params, dim)
		}
	}

	tasks := []async.Task{
		{
			Name: "overview",
			Execute: func() (interface{}, error) {
				return analytics.Overview(db, scope.params)
			},
		},
		{
			Name: "timeline",
			Execute: func() (interface{}, error) {
				stats, err := analytics.Timeline(db, scope.params, scope.rng)
				if err != nil {
					return nil, err
				}
				return toTimeSeries(stats), nil
			},
		},
		{Name: "topPages", Execute: breakdown(analytics.PageDimension)},
		{Name: "topReferrers", Execute: breakdown(analytics.ReferrerDimension)},
		{Name: "topCountries", Execute: breakdown(analytics.LocationDimension)},
		{Name: "topDevices", Execute: breakdown(analytics.DeviceDimension)},
		{
			Name: "visitorsNow",
			Execute: func() (interface{}, error) {
				return presence.CountLive(db, scope.params.SiteID, now, cfg.PresenceWindow())
			},
		},
	}

	pool := async.NewPool(4)
	results := pool.Execute(context.Background(), tasks)

	for name, result := range results {
		if result.Err != nil {
			ctx.Logger.Error("Dashboard query failed",
				slog.String("query", name), slog.Any("error", result.Err))
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": result.Err.Error()})
		}
	}

	return ctx.JSON(&DashboardResponse{
		Overview:     results["overview"].Data.(*analytics.OverviewMetrics),
		Timeline:     results["timeline"].Data.([]TimeSeriesPoint),
		TopPages:     metricsOrEmpty(results, "topPages"),
		TopReferrers: metricsOrEmpty(results, "topReferrers"),
		TopCountries: metricsOrEmpty(results, "topCountries"),
		TopDevices:   metricsOrEmpty(results, "topDevices"),
		VisitorsNow:  results["visitorsNow"].Data.(int64),
	})
}

func metricsOrEmpty(results map[string]async.Result, name string) []analytics.MetricCountResult {
	if result, ok := results[name]; ok && result.Data != nil {
		if metrics, ok := result.Data.([]analytics.MetricCountResult); ok {
			return metrics
		}
	}
	return []analytics.MetricCountResult{}
}
