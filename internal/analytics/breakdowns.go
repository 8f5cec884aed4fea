package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"sitepulse/internal/pkg/referrers"
)

// ErrUnknownDimension is returned for a type discriminator outside the
// supported set. The HTTP layer maps it to a 400.
var ErrUnknownDimension = errors.New("unknown dimension")

// Null sentinels per dimension family.
const (
	SentinelPath     = "/"
	SentinelUnknown  = "Unknown"
	SentinelReferrer = referrers.ChannelDirect
	SentinelDevice   = "desktop"
)

// Dimension is one supported breakdown: a fixed column expression with
// its own sentinel, result cap, and presentation mode. The set is
// closed; handlers resolve a query discriminator through one of the
// *Dimension lookups and never pass raw strings into SQL.
type Dimension struct {
	key      string
	table    string
	column   string
	timeCol  string
	sentinel string
	limit    int

	percent   bool // value is a share of the total, not a count
	byChannel bool // post-aggregate referrer domains into channels
	byCountry bool // names are ISO codes, resolved for display
	titleCase bool // display names in title case
}

var pageDimensions = map[string]Dimension{
	"page":       {key: "page", table: "page_views", column: "path", timeCol: "timestamp", sentinel: SentinelPath, limit: 10},
	"hostname":   {key: "hostname", table: "page_views", column: "hostname", timeCol: "timestamp", sentinel: SentinelUnknown, limit: 10},
	"entry_page": {key: "entry_page", table: "sessions", column: "entry_url", timeCol: "started_at", sentinel: SentinelPath, limit: 10},
	"exit_page":  {key: "exit_page", table: "sessions", column: "exit_path", timeCol: "started_at", sentinel: SentinelPath, limit: 10},
}

var referrerDimensions = map[string]Dimension{
	"referrer": {key: "referrer", table: "page_views", column: "referrer_domain", timeCol: "timestamp", sentinel: SentinelReferrer, limit: 10},
	"channel":  {key: "channel", table: "page_views", column: "referrer_domain", timeCol: "timestamp", sentinel: SentinelReferrer, limit: 10, byChannel: true},
	"campaign": {key: "campaign", table: "page_views", column: "utm_campaign", timeCol: "timestamp", sentinel: SentinelUnknown, limit: 10},
	"keyword":  {key: "keyword", table: "page_views", column: "utm_term", timeCol: "timestamp", sentinel: SentinelUnknown, limit: 10},
}

var locationDimensions = map[string]Dimension{
	"country": {key: "country", table: "page_views", column: "country_code", timeCol: "timestamp", sentinel: SentinelUnknown, limit: 20, byCountry: true},
	"region":  {key: "region", table: "page_views", column: "region", timeCol: "timestamp", sentinel: SentinelUnknown, limit: 20},
	"city":    {key: "city", table: "page_views", column: "city", timeCol: "timestamp", sentinel: SentinelUnknown, limit: 20},
}

var deviceDimensions = map[string]Dimension{
	"device":  {key: "device", table: "page_views", column: "device_type", timeCol: "timestamp", sentinel: SentinelDevice, limit: 10, percent: true, titleCase: true},
	"browser": {key: "browser", table: "page_views", column: "browser", timeCol: "timestamp", sentinel: SentinelUnknown, limit: 10, percent: true},
	"os":      {key: "os", table: "page_views", column: "os", timeCol: "timestamp", sentinel: SentinelUnknown, limit: 10, percent: true},
}

func lookupDimension(group map[string]Dimension, key, fallback string) (Dimension, error) {
	if key == "" {
		key = fallback
	}
	dim, ok := group[key]
	if !ok {
		return Dimension{}, fmt.Errorf("%w: %q", ErrUnknownDimension, key)
	}
	return dim, nil
}

// PageDimension resolves the pages discriminator, defaulting to path.
func PageDimension(key string) (Dimension, error) {
	return lookupDimension(pageDimensions, key, "page")
}

// ReferrerDimension resolves the referrers discriminator.
func ReferrerDimension(key string) (Dimension, error) {
	return lookupDimension(referrerDimensions, key, "referrer")
}

// LocationDimension resolves the locations discriminator.
func LocationDimension(key string) (Dimension, error) {
	return lookupDimension(locationDimensions, key, "country")
}

// DeviceDimension resolves the devices discriminator.
func DeviceDimension(key string) (Dimension, error) {
	return lookupDimension(deviceDimensions, key, "device")
}

type breakdownRow struct {
	Name  string
	Count int64
}

// TopBreakdown runs the grouped count for one dimension. Empty and
// null values collapse to the dimension's sentinel before grouping, so
// the sentinel competes for ranking like any other value. Ordering is
// count descending with name ascending as the tie-break, which keeps
// results stable across runs.
func TopBreakdown(db *gorm.DB, params QueryParams, dim Dimension) ([]MetricCountResult, error) {
	var rows []breakdownRow
	var err error
	if dim.byChannel {
		rows, err = collapseChannels(db, params, dim)
	} else {
		rows, err = groupedCounts(db, params, dim, dim.limit)
	}
	if err != nil {
		return nil, err
	}

	results := make([]MetricCountResult, 0, len(rows))

	if dim.percent {
		total, err := totalCount(db, params, dim)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			value := int64(0)
			if total > 0 {
				value = int64(math.Round(float64(row.Count) / float64(total) * 100))
			}
			results = append(results, MetricCountResult{Name: displayName(dim, row.Name), Value: value})
		}
		return results, nil
	}

	for _, row := range rows {
		result := MetricCountResult{Name: displayName(dim, row.Name), Value: row.Count}
		if dim.byCountry && row.Name != dim.sentinel {
			result.Code = row.Name
		}
		results = append(results, result)
	}
	return results, nil
}

func groupedCounts(db *gorm.DB, params QueryParams, dim Dimension, limit int) ([]breakdownRow, error) {
	query := db.Table(dim.table).
		Select(fmt.Sprintf("COALESCE(NULLIF(%s, ''), ?) AS name, COUNT(*) AS count", dim.column), dim.sentinel).
		Where(fmt.Sprintf("%s >= ? AND %s <= ?", dim.timeCol, dim.timeCol), params.From.UTC(), params.To.UTC())
	if params.SiteID != "" {
		query = query.Where("site_id = ?", params.SiteID)
	}
	query = query.Group("name").Order("count DESC, name ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []breakdownRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("breakdown query for %s: %w", dim.key, err)
	}
	return rows, nil
}

// totalCount is the denominator for share dimensions: every row in
// range, not just the capped top N.
func totalCount(db *gorm.DB, params QueryParams, dim Dimension) (int64, error) {
	query := db.Table(dim.table).
		Where(fmt.Sprintf("%s >= ? AND %s <= ?", dim.timeCol, dim.timeCol), params.From.UTC(), params.To.UTC())
	if params.SiteID != "" {
		query = query.Where("site_id = ?", params.SiteID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("breakdown total for %s: %w", dim.key, err)
	}
	return total, nil
}

// collapseChannels re-aggregates the full referrer domain distribution
// into acquisition channels. The domain grouping runs uncapped because
// many domains fold into one channel.
func collapseChannels(db *gorm.DB, params QueryParams, dim Dimension) ([]breakdownRow, error) {
	domains, err := groupedCounts(db, params, dim, 0)
	if err != nil {
		return nil, err
	}

	byChannel := make(map[string]int64)
	for _, row := range domains {
		channel := row.Name
		if channel != dim.sentinel {
			channel = referrers.Channel(row.Name)
		}
		byChannel[channel] += row.Count
	}

	rows := make([]breakdownRow, 0, len(byChannel))
	for name, count := range byChannel {
		rows = append(rows, breakdownRow{Name: name, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})
	if dim.limit > 0 && len(rows) > dim.limit {
		rows = rows[:dim.limit]
	}
	return rows, nil
}

var (
	countriesOnce sync.Once
	countriesDB   *gountries.Query
)

func displayName(dim Dimension, name string) string {
	if dim.byCountry {
		if name == dim.sentinel {
			return name
		}
		countriesOnce.Do(func() { countriesDB = gountries.New() })
		country, err := countriesDB.FindCountryByAlpha(name)
		if err != nil {
			return name
		}
		return country.Name.Common
	}
	if dim.titleCase {
		return cases.Title(language.AmericanEnglish).String(name)
	}
	return name
}
