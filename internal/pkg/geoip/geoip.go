// Package geoip resolves source IP addresses to coarse locations.
//
// Enrichment is best-effort by contract: every failure path degrades to an
// empty Location, never to an error, so ingestion can always proceed.
package geoip

import (
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

var (
	mu            sync.RWMutex
	defaultLookup Lookup = Noop{}
)

// SetDefault installs the process-wide lookup used by request handlers.
// Called once at startup; tests swap in stubs through the same hook.
func SetDefault(l Lookup) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = Noop{}
	}
	defaultLookup = l
}

// Default returns the process-wide lookup.
func Default() Lookup {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLookup
}

// Location is the flat geolocation record merged into events. Zero values
// propagate downstream as Unknown.
type Location struct {
	Country     string
	CountryCode string
	Region      string
	City        string
	Latitude    float64
	Longitude   float64
}

// Lookup resolves a routable IP address to a Location. Implementations
// return the zero Location when resolution fails.
type Lookup interface {
	Locate(ip string) Location
}

// localhostLocation is the fixed pseudo-location for loopback and other
// unroutable source addresses. No lookup is consulted for them.
var localhostLocation = Location{
	Country:     "Localhost",
	CountryCode: "LO",
	Region:      "Local",
	City:        "Local",
}

// Resolve is the entry point used by the collector: it short-circuits
// unroutable addresses to the localhost pseudo-location and delegates the
// rest to the configured lookup.
func Resolve(lookup Lookup, ip string) Location {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}
	}
	if isUnroutable(parsed) {
		return localhostLocation
	}
	if lookup == nil {
		return Location{}
	}
	return lookup.Locate(ip)
}

func isUnroutable(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsUnspecified() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// Reader is a Lookup backed by a MaxMind GeoLite2/GeoIP2 City database.
type Reader struct {
	db     *geoip2.Reader
	logger *slog.Logger
}

// NewReader opens the mmdb file at path. A missing database is not an
// error: GeoIP is optional, so the caller gets a nil Reader and events are
// simply not geolocated.
func NewReader(path string, logger *slog.Logger) (*Reader, error) {
	if path == "" {
		logger.Debug("GeoIP database path not configured - geolocation disabled")
		return nil, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("GeoLite2 database not found - geolocation disabled",
			slog.String("path", path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil, nil
	}

	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	logger.Info("GeoLite2 database initialized", slog.String("path", path))
	return &Reader{db: db, logger: logger}, nil
}

// Locate resolves the given IP through the City database. Any failure
// (bad IP, reader error, record without data) yields the zero Location.
func (r *Reader) Locate(ip string) Location {
	if r == nil || r.db == nil {
		return Location{}
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}
	}

	record, err := r.db.City(parsed)
	if err != nil {
		r.logger.Debug("GeoIP lookup failed", slog.String("ip", ip), slog.Any("error", err))
		return Location{}
	}

	loc := Location{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
		Latitude:    record.Location.Latitude,
		Longitude:   record.Location.Longitude,
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	return loc
}

// Close releases the underlying mmdb handle.
func (r *Reader) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Noop is a Lookup that resolves nothing; used in tests and deployments
// without a GeoIP database.
type Noop struct{}

func (Noop) Locate(string) Location { return Location{} }
