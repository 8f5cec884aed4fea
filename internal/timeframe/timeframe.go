// Package timeframe turns a dashboard range selector into concrete
// query bounds and a gap-free bucket series.
package timeframe

import (
	"fmt"
	"time"
)

// Bucket is the granularity of a timeline series.
type Bucket string

const (
	BucketHour Bucket = "hour"
	BucketDay  Bucket = "day"
)

// Supported range selectors.
const (
	Range24h     = "24h"
	Range7d      = "7d"
	Range30d     = "30d"
	Range90d     = "90d"
	DefaultRange = Range7d
)

// Range is a resolved reporting window. From and To are UTC instants;
// bucket labels are rendered in the requested location so day
// boundaries follow the viewer's calendar, not the server's.
type Range struct {
	Label  string
	From   time.Time
	To     time.Time
	Bucket Bucket
	Loc    *time.Location
}

// Parse resolves a range selector against an explicit clock. The 24h
// range is anchored at the viewer's local midnight ("today"), not a
// rolling 24 hours; day ranges look back from now.
func Parse(label string, now time.Time, loc *time.Location) (*Range, error) {
	if label == "" {
		label = DefaultRange
	}
	if loc == nil {
		loc = time.UTC
	}
	now = now.UTC()

	switch label {
	case Range24h:
		local := now.In(loc)
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		return &Range{
			Label:  label,
			From:   midnight.UTC(),
			To:     now,
			Bucket: BucketHour,
			Loc:    loc,
		}, nil
	case Range7d, Range30d, Range90d:
		days := map[string]int{Range7d: 7, Range30d: 30, Range90d: 90}[label]
		return &Range{
			Label:  label,
			From:   now.AddDate(0, 0, -days),
			To:     now,
			Bucket: BucketDay,
			Loc:    loc,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported range %q", label)
	}
}

// DateStat is one timeline point.
type DateStat struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// BucketLabel renders the bucket a timestamp falls into: "HH:00" for
// hourly series, "YYYY-MM-DD" for daily ones.
func (r *Range) BucketLabel(t time.Time) string {
	local := t.In(r.Loc)
	if r.Bucket == BucketHour {
		return local.Format("15:00")
	}
	return local.Format("2006-01-02")
}

// Contains reports whether a timestamp falls inside the range.
func (r *Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// BuildSeries counts timestamps per bucket and returns one point for
// every bucket between From and To, zero-filled. Bucketing happens
// here rather than in SQL so the grouping always matches the
// requested timezone.
func (r *Range) BuildSeries(timestamps []time.Time) []DateStat {
	counts := make(map[string]int, len(timestamps))
	for _, ts := range timestamps {
		if !r.Contains(ts) {
			continue
		}
		counts[r.BucketLabel(ts)]++
	}
	return r.FillSeries(counts)
}

// FillSeries expands a label-to-count map into the gap-free series for
// the range: one point per bucket from the range start through the
// bucket containing the range end, zeros included.
func (r *Range) FillSeries(counts map[string]int) []DateStat {
	series := make([]DateStat, 0)
	if r.Bucket == BucketHour {
		local := r.From.In(r.Loc)
		cursor := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, r.Loc)
		for !cursor.After(r.To.In(r.Loc)) {
			label := cursor.Format("15:00")
			series = append(series, DateStat{Date: label, Count: counts[label]})
			cursor = cursor.Add(time.Hour)
		}
		return series
	}

	local := r.From.In(r.Loc)
	cursor := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.Loc)
	endLocal := r.To.In(r.Loc)
	end := time.Date(endLocal.Year(), endLocal.Month(), endLocal.Day(), 0, 0, 0, 0, r.Loc)
	for !cursor.After(end) {
		label := cursor.Format("2006-01-02")
		series = append(series, DateStat{Date: label, Count: counts[label]})
		cursor = cursor.AddDate(0, 0, 1)
	}
	return series
}
