package sessions

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Session is the stitched view of one visit: one row per (site,
// session identifier), updated in place as page views arrive.
type Session struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SiteID    string `gorm:"size:64;not null;uniqueIndex:idx_sessions_site_session"`
	SessionID string `gorm:"size:36;not null;uniqueIndex:idx_sessions_site_session"`
	VisitorID string `gorm:"size:36;not null;index"`

	StartedAt       time.Time `gorm:"not null;index"`
	EndedAt         time.Time `gorm:"not null"`
	DurationSeconds int       `gorm:"not null;default:0"`
	PageViewCount   int       `gorm:"not null;default:1"`
	Bounced         bool      `gorm:"not null;default:true"`

	EntryURL      string
	EntryReferrer string
	ExitURL       string
	ExitPath      string

	CountryCode string `gorm:"size:2"`
	City        string
	DeviceType  string
	Browser     string
	OS          string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Session) TableName() string {
	return "sessions"
}

// PageViewStitch is the slice of an ingested page view that feeds
// session stitching.
type PageViewStitch struct {
	SiteID    string
	SessionID string
	VisitorID string

	// StartedAt is the client-reported session start, pinned on first
	// sight and never moved afterwards.
	StartedAt time.Time
	// OccurredAt is when this page view happened.
	OccurredAt time.Time

	URL      string
	Path     string
	Referrer string

	CountryCode string
	City        string
	DeviceType  string
	Browser     string
	OS          string
}

// Record folds a page view into its session in a single atomic
// statement. The first page view inserts the row with its entry
// fields; every later one extends the same row without ever reading
// it back, so concurrent page views for one session cannot clobber
// each other's counts.
//
// Entry fields and started_at only appear in the insert column list.
// The conflict clause recomputes the duration from the stored
// started_at so late duplicates of the first page view still measure
// against the pinned start.
func Record(dbManager cartridge.DBManager, logger *slog.Logger, pv *PageViewStitch) error {
	startedAt := pv.StartedAt.UTC()
	occurredAt := pv.OccurredAt.UTC()

	duration := int(occurredAt.Sub(startedAt).Seconds())
	if duration < 0 {
		duration = 0
	}

	now := time.Now().UTC()
	db := dbManager.GetConnection()

	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Exec(`
            INSERT INTO sessions (
                site_id, session_id, visitor_id,
                started_at, ended_at, duration_seconds, page_view_count, bounced,
                entry_url, entry_referrer, exit_url, exit_path,
                country_code, city, device_type, browser, os,
                created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, 1, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(site_id, session_id) DO UPDATE SET
                ended_at = excluded.ended_at,
                duration_seconds = MAX(0, CAST(ROUND(
                    (julianday(excluded.ended_at) - julianday(sessions.started_at)) * 86400
                ) AS INTEGER)),
                page_view_count = sessions.page_view_count + 1,
                bounced = 0,
                exit_url = excluded.exit_url,
                exit_path = excluded.exit_path,
                country_code = excluded.country_code,
                city = excluded.city,
                device_type = excluded.device_type,
                browser = excluded.browser,
                os = excluded.os,
                updated_at = excluded.updated_at
        `,
			pv.SiteID, pv.SessionID, pv.VisitorID,
			startedAt, occurredAt, duration,
			pv.URL, pv.Referrer, pv.URL, pv.Path,
			pv.CountryCode, pv.City, pv.DeviceType, pv.Browser, pv.OS,
			now, now,
		).Error
	})
}
