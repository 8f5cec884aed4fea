package geoip_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sitepulse/internal/pkg/geoip"
)

// stubLookup records calls and returns a fixed location.
type stubLookup struct {
	calls    int
	location geoip.Location
}

func (s *stubLookup) Locate(string) geoip.Location {
	s.calls++
	return s.location
}

func TestResolveLoopbackSkipsLookup(t *testing.T) {
	testCases := []struct {
		name string
		ip   string
	}{
		{"IPv4 loopback", "127.0.0.1"},
		{"IPv6 loopback", "::1"},
		{"private RFC1918", "192.168.1.10"},
		{"unspecified", "0.0.0.0"},
		{"link local", "169.254.0.5"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubLookup{}

			loc := geoip.Resolve(stub, tc.ip)

			assert.Equal(t, "Localhost", loc.Country)
			assert.Equal(t, "LO", loc.CountryCode)
			assert.Equal(t, "Local", loc.City)
			assert.Zero(t, stub.calls, "unroutable IPs must not hit the lookup")
		})
	}
}

func TestResolveRoutableDelegates(t *testing.T) {
	stub := &stubLookup{location: geoip.Location{
		Country:     "Germany",
		CountryCode: "DE",
		Region:      "Berlin",
		City:        "Berlin",
		Latitude:    52.52,
		Longitude:   13.405,
	}}

	loc := geoip.Resolve(stub, "93.184.216.34")

	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, "DE", loc.CountryCode)
	assert.Equal(t, "Berlin", loc.City)
}

func TestResolveBadInput(t *testing.T) {
	stub := &stubLookup{}

	assert.Equal(t, geoip.Location{}, geoip.Resolve(stub, "not-an-ip"))
	assert.Zero(t, stub.calls)

	// A nil lookup is valid: geolocation is optional.
	assert.Equal(t, geoip.Location{}, geoip.Resolve(nil, "93.184.216.34"))
}

func TestNoopLookup(t *testing.T) {
	assert.Equal(t, geoip.Location{}, geoip.Noop{}.Locate("93.184.216.34"))
}
