package events

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"sitepulse/internal/pkg/geoip"
	"sitepulse/internal/pkg/useragent"
	"sitepulse/internal/presence"
	"sitepulse/internal/sessions"
)

// CollectInput wraps a validated payload with the request-scoped facts
// the handler extracts: the client IP for geolocation and the server
// clock for all derived timestamps.
type CollectInput struct {
	Input     *PageViewInput
	IPAddress string
	Now       time.Time
}

// Collect runs the full ingestion pipeline for one page view: enrich,
// persist the append-only event, then fold it into the session and
// presence tables.
//
// Only the event insert is fatal. Session stitching and presence are
// derived state; their failures are logged and swallowed so a page
// view is never lost to them.
func Collect(dbManager cartridge.DBManager, logger *slog.Logger, lookup geoip.Lookup, in *CollectInput) error {
	input := in.Input
	now := in.Now.UTC()

	ua := useragent.Classify(input.UserAgent)
	location := geoip.Resolve(lookup, in.IPAddress)
	utm := extractUTM(input.URL)

	pageView := &PageView{
		SiteID:    input.SiteID,
		VisitorID: input.VisitorID,
		SessionID: input.SessionID,

		URL:            input.URL,
		Hostname:       pageHostname(input.URL),
		Path:           input.Path,
		Title:          input.Title,
		Referrer:       input.Referrer,
		ReferrerDomain: referrerDomain(input.Referrer),

		UTMSource:   utm.Source,
		UTMMedium:   utm.Medium,
		UTMCampaign: utm.Campaign,
		UTMTerm:     utm.Term,
		UTMContent:  utm.Content,

		Browser:        ua.Browser,
		BrowserVersion: ua.BrowserVersion,
		OS:             ua.OS,
		OSVersion:      ua.OSVersion,
		DeviceType:     ua.Device,

		ScreenWidth:  input.ScreenWidth,
		ScreenHeight: input.ScreenHeight,
		Language:     input.Language,

		Country:     location.Country,
		CountryCode: location.CountryCode,
		Region:      location.Region,
		City:        location.City,
		Latitude:    location.Latitude,
		Longitude:   location.Longitude,

		Timestamp: now,
	}

	db := dbManager.GetConnection()
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(pageView).Error
	})
	if err != nil {
		return fmt.Errorf("storing page view: %w", err)
	}

	startedAt := now
	if input.SessionStartTime > 0 {
		startedAt = time.UnixMilli(input.SessionStartTime).UTC()
	}

	stitch := &sessions.PageViewStitch{
		SiteID:      input.SiteID,
		SessionID:   input.SessionID,
		VisitorID:   input.VisitorID,
		StartedAt:   startedAt,
		OccurredAt:  now,
		URL:         input.URL,
		Path:        input.Path,
		Referrer:    input.Referrer,
		CountryCode: location.CountryCode,
		City:        location.City,
		DeviceType:  ua.Device,
		Browser:     ua.Browser,
		OS:          ua.OS,
	}
	if err := sessions.Record(dbManager, logger, stitch); err != nil {
		logger.Error("Failed to stitch session for page view",
			slog.String("site_id", input.SiteID),
			slog.String("session_id", input.SessionID),
			slog.Any("error", err))
	}

	heartbeat := &presence.Heartbeat{
		SiteID:      input.SiteID,
		VisitorID:   input.VisitorID,
		SessionID:   input.SessionID,
		SeenAt:      now,
		Path:        input.Path,
		CountryCode: location.CountryCode,
		City:        location.City,
		Latitude:    location.Latitude,
		Longitude:   location.Longitude,
		DeviceType:  ua.Device,
	}
	if err := presence.Touch(dbManager, logger, heartbeat); err != nil {
		logger.Error("Failed to record presence for page view",
			slog.String("site_id", input.SiteID),
			slog.String("visitor_id", input.VisitorID),
			slog.Any("error", err))
	}

	return nil
}

// utmParams holds the campaign attribution parameters lifted from the
// page URL's query string.
type utmParams struct {
	Source   string
	Medium   string
	Campaign string
	Term     string
	Content  string
}

func extractUTM(rawURL string) utmParams {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return utmParams{}
	}
	query := parsed.Query()
	return utmParams{
		Source:   query.Get("utm_source"),
		Medium:   query.Get("utm_medium"),
		Campaign: query.Get("utm_campaign"),
		Term:     query.Get("utm_term"),
		Content:  query.Get("utm_content"),
	}
}

// pageHostname extracts the lowercased hostname of the tracked page.
func pageHostname(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// referrerDomain extracts the lowercased hostname from a referrer URL.
// Anything unparseable or schemeless yields the empty string, which
// downstream reads as direct traffic.
func referrerDomain(referrer string) string {
	if referrer == "" {
		return ""
	}
	parsed, err := url.Parse(referrer)
	if err != nil || parsed.Hostname() == "" {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
