// Package analytics answers the dashboard's read queries over the raw
// page view and session stores. All aggregation stays behind this
// package boundary; callers see plain result structs.
package analytics

import (
	"time"
)

// QueryParams scopes a read query. SiteID empty means all sites.
type QueryParams struct {
	SiteID string
	From   time.Time
	To     time.Time
}

// MetricCountResult is one row of a top-N breakdown. Value is a raw
// count for list dimensions and a rounded percentage for share
// dimensions. Code carries the ISO country code where applicable.
type MetricCountResult struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
	Code  string `json:"code,omitempty"`
}

// OverviewMetrics is the headline summary for a site and range.
type OverviewMetrics struct {
	Visitors       int64   `json:"visitors"`
	PageViews      int64   `json:"pageViews"`
	BounceRate     float64 `json:"bounceRate"`
	AvgSessionTime int     `json:"avgSessionTime"`
}
