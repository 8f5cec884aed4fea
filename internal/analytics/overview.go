package analytics

import (
	"fmt"
	"math"

	"gorm.io/gorm"

	"sitepulse/internal/events"
)

type sessionTotals struct {
	Total        int64
	Visitors     int64
	BouncedTotal int64
	DurationSum  int64
}

// Overview computes the headline metrics. Page views come from the raw
// event store; visitors, bounce rate, and session time come from
// sessions that started inside the range. All metrics are zero when
// the range is empty.
func Overview(db *gorm.DB, params QueryParams) (*OverviewMetrics, error) {
	pageViewsQuery := db.Model(&events.PageView{}).
		Where("timestamp >= ? AND timestamp <= ?", params.From.UTC(), params.To.UTC())
	if params.SiteID != "" {
		pageViewsQuery = pageViewsQuery.Where("site_id = ?", params.SiteID)
	}

	var pageViews int64
	if err := pageViewsQuery.Count(&pageViews).Error; err != nil {
		return nil, fmt.Errorf("counting page views: %w", err)
	}

	sessionsQuery := db.Table("sessions").
		Select(`COUNT(*) AS total,
            COUNT(DISTINCT visitor_id) AS visitors,
            COALESCE(SUM(CASE WHEN bounced THEN 1 ELSE 0 END), 0) AS bounced_total,
            COALESCE(SUM(duration_seconds), 0) AS duration_sum`).
		Where("started_at >= ? AND started_at <= ?", params.From.UTC(), params.To.UTC())
	if params.SiteID != "" {
		sessionsQuery = sessionsQuery.Where("site_id = ?", params.SiteID)
	}

	var totals sessionTotals
	if err := sessionsQuery.Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("aggregating sessions: %w", err)
	}

	metrics := &OverviewMetrics{
		Visitors:  totals.Visitors,
		PageViews: pageViews,
	}
	if totals.Total > 0 {
		rate := float64(totals.BouncedTotal) / float64(totals.Total) * 100
		metrics.BounceRate = math.Round(rate*10) / 10
		metrics.AvgSessionTime = int(math.Round(float64(totals.DurationSum) / float64(totals.Total)))
	}
	return metrics, nil
}
