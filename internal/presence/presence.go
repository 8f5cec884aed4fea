package presence

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Presence tracks the latest sighting of a visitor on a site. One row
// per (site, visitor), overwritten on every page view. Rows are never
// expired on write; liveness is a read-time filter on last_seen.
type Presence struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SiteID    string `gorm:"size:64;not null;uniqueIndex:idx_presence_site_visitor"`
	VisitorID string `gorm:"size:36;not null;uniqueIndex:idx_presence_site_visitor"`
	SessionID string `gorm:"size:36;not null"`

	LastSeen    time.Time `gorm:"not null;index"`
	CurrentPath string

	CountryCode string `gorm:"size:2"`
	City        string
	Latitude    float64
	Longitude   float64
	DeviceType  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Presence) TableName() string {
	return "presence"
}

// Heartbeat is one visitor sighting derived from an ingested page view.
type Heartbeat struct {
	SiteID    string
	VisitorID string
	SessionID string

	SeenAt time.Time
	Path   string

	CountryCode string
	City        string
	Latitude    float64
	Longitude   float64
	DeviceType  string
}

// Touch upserts the visitor's presence row, last write wins. A repeat
// sighting moves the visitor to their newest page and refreshes
// last_seen; it never creates a second row for the same visitor.
func Touch(dbManager cartridge.DBManager, logger *slog.Logger, hb *Heartbeat) error {
	seenAt := hb.SeenAt.UTC()
	now := time.Now().UTC()
	db := dbManager.GetConnection()

	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Exec(`
            INSERT INTO presence (
                site_id, visitor_id, session_id, last_seen, current_path,
                country_code, city, latitude, longitude, device_type,
                created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(site_id, visitor_id) DO UPDATE SET
                session_id = excluded.session_id,
                last_seen = excluded.last_seen,
                current_path = excluded.current_path,
                country_code = excluded.country_code,
                city = excluded.city,
                latitude = excluded.latitude,
                longitude = excluded.longitude,
                device_type = excluded.device_type,
                updated_at = excluded.updated_at
        `,
			hb.SiteID, hb.VisitorID, hb.SessionID, seenAt, hb.Path,
			hb.CountryCode, hb.City, hb.Latitude, hb.Longitude, hb.DeviceType,
			now, now,
		).Error
	})
}

// CountLive returns how many distinct visitors were seen within the
// live window ending at now.
func CountLive(db *gorm.DB, siteID string, now time.Time, window time.Duration) (int64, error) {
	cutoff := now.UTC().Add(-window)

	query := db.Model(&Presence{}).Where("last_seen >= ?", cutoff)
	if siteID != "" {
		query = query.Where("site_id = ?", siteID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// LiveVisitors returns the presence rows inside the live window, most
// recently seen first.
func LiveVisitors(db *gorm.DB, siteID string, now time.Time, window time.Duration, limit int) ([]Presence, error) {
	cutoff := now.UTC().Add(-window)

	query := db.Where("last_seen >= ?", cutoff)
	if siteID != "" {
		query = query.Where("site_id = ?", siteID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var visitors []Presence
	if err := query.Order("last_seen DESC").Find(&visitors).Error; err != nil {
		return nil, err
	}
	return visitors, nil
}

// Prune deletes presence rows not seen since the cutoff. Purely a
// storage compaction; reads are already filtered by last_seen.
func Prune(dbManager cartridge.DBManager, logger *slog.Logger, cutoff time.Time) (int64, error) {
	db := dbManager.GetConnection()

	var deleted int64
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		result := tx.Where("last_seen < ?", cutoff.UTC()).Delete(&Presence{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}
