// Package sites holds the registered-site collaborator consumed by the
// ingestion pipeline. The pipeline treats site ids as opaque keys; site
// registration and entitlement live outside the analytics core.
package sites

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Site represents a registered website.
type Site struct {
	ID        uint   `gorm:"primaryKey"`
	PublicID  string `gorm:"uniqueIndex;size:64;not null"`
	Domain    string `gorm:"index"`
	Name      string
	Active    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SiteNotFoundError indicates the given public id has no registered site.
type SiteNotFoundError struct {
	PublicID string
}

func (e *SiteNotFoundError) Error() string {
	return fmt.Sprintf("site not found: %s", e.PublicID)
}

// NewSiteNotFoundError creates a SiteNotFoundError for the given public id.
func NewSiteNotFoundError(publicID string) *SiteNotFoundError {
	return &SiteNotFoundError{PublicID: publicID}
}

// GetSiteByPublicID fetches a site by its opaque public id.
func GetSiteByPublicID(db *gorm.DB, publicID string) (*Site, error) {
	var site Site
	err := db.Where("public_id = ?", publicID).First(&site).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewSiteNotFoundError(publicID)
		}
		return nil, err
	}
	return &site, nil
}

// IsActive reports whether a site exists and is active. Unknown sites are
// inactive rather than an error: the pipeline consumes this as a fact, not
// as entitlement enforcement.
func IsActive(db *gorm.DB, publicID string) (bool, error) {
	site, err := GetSiteByPublicID(db, publicID)
	if err != nil {
		var notFound *SiteNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return site.Active, nil
}

// CreateSite registers a site. Used by seeding and tests; the user-facing
// registration flow lives outside this module.
func CreateSite(db *gorm.DB, site *Site) error {
	return db.Create(site).Error
}
