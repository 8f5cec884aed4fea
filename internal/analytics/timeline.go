package analytics

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"sitepulse/internal/timeframe"
)

type timelineRow struct {
	Timestamp time.Time
	VisitorID string
}

// Timeline returns distinct visitors per bucket, one gap-filled point
// per bucket of the range. Rows are loaded raw and bucketed in Go so
// the grouping honors the viewer's timezone instead of SQLite's.
func Timeline(db *gorm.DB, params QueryParams, r *timeframe.Range) ([]timeframe.DateStat, error) {
	query := db.Table("page_views").
		Select("timestamp, visitor_id").
		Where("timestamp >= ? AND timestamp <= ?", r.From, r.To).
		Order("timestamp ASC")
	if params.SiteID != "" {
		query = query.Where("site_id = ?", params.SiteID)
	}

	var rows []timelineRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading timeline rows: %w", err)
	}

	seen := make(map[string]map[string]struct{})
	for _, row := range rows {
		if !r.Contains(row.Timestamp) {
			continue
		}
		label := r.BucketLabel(row.Timestamp)
		if seen[label] == nil {
			seen[label] = make(map[string]struct{})
		}
		seen[label][row.VisitorID] = struct{}{}
	}

	counts := make(map[string]int, len(seen))
	for label, visitors := range seen {
		counts[label] = len(visitors)
	}
	return r.FillSeries(counts), nil
}
