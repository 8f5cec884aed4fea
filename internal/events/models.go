package events

import (
	"time"
)

// PageView is the append-only record of a single tracked page view,
// enriched at ingestion time with user agent and geolocation data.
type PageView struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SiteID    string `gorm:"size:64;not null;index:idx_page_views_site_timestamp"`
	VisitorID string `gorm:"size:36;not null;index"`
	SessionID string `gorm:"size:36;not null;index"`

	URL            string `gorm:"not null"`
	Hostname       string `gorm:"index"`
	Path           string `gorm:"not null;index"`
	Title          string
	Referrer       string
	ReferrerDomain string `gorm:"index"`

	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMTerm     string
	UTMContent  string

	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     string

	ScreenWidth  int
	ScreenHeight int
	Language     string

	Country     string
	CountryCode string `gorm:"size:2"`
	Region      string
	City        string
	Latitude    float64
	Longitude   float64

	Timestamp time.Time `gorm:"not null;index:idx_page_views_site_timestamp"`
	CreatedAt time.Time
}

func (PageView) TableName() string {
	return "page_views"
}
