package useragent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sitepulse/internal/pkg/useragent"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name           string
		userAgent      string
		browser        string
		browserVersion string
		os             string
		osVersion      string
		device         string
	}{
		{
			name:           "Chrome on Windows desktop",
			userAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			browser:        "Chrome",
			browserVersion: "120.0.0.0",
			os:             "Windows",
			osVersion:      "",
			device:         useragent.DeviceDesktop,
		},
		{
			name:           "Safari on iPhone",
			userAgent:      "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
			browser:        "Safari",
			browserVersion: "16.6",
			os:             "iOS",
			osVersion:      "16.6",
			device:         useragent.DeviceMobile,
		},
		{
			name:           "Safari on iPad classifies as tablet",
			userAgent:      "Mozilla/5.0 (iPad; CPU OS 15_7 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.6.1 Mobile/15E148 Safari/604.1",
			browser:        "Safari",
			browserVersion: "15.6.1",
			os:             "iOS",
			osVersion:      "15.7",
			device:         useragent.DeviceTablet,
		},
		{
			name:           "Android tablet without Mobile token",
			userAgent:      "Mozilla/5.0 (Linux; Android 13; SM-X200) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
			browser:        "Chrome",
			browserVersion: "114.0.0.0",
			os:             "Android",
			osVersion:      "13",
			device:         useragent.DeviceTablet,
		},
		{
			name:           "Android phone with Mobile token",
			userAgent:      "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Mobile Safari/537.36",
			browser:        "Chrome",
			browserVersion: "121.0.0.0",
			os:             "Android",
			osVersion:      "14",
			device:         useragent.DeviceMobile,
		},
		{
			name:           "Firefox on Linux",
			userAgent:      "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/119.0",
			browser:        "Firefox",
			browserVersion: "119.0",
			os:             "Linux",
			osVersion:      "",
			device:         useragent.DeviceDesktop,
		},
		{
			name:           "Edge on Windows",
			userAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91",
			browser:        "Edge",
			browserVersion: "120.0.2210.91",
			os:             "Windows",
			osVersion:      "",
			device:         useragent.DeviceDesktop,
		},
		{
			name:           "Samsung Internet before Chrome",
			userAgent:      "Mozilla/5.0 (Linux; Android 13; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/23.0 Chrome/115.0.0.0 Mobile Safari/537.36",
			browser:        "Samsung Internet",
			browserVersion: "23.0",
			os:             "Android",
			osVersion:      "13",
			device:         useragent.DeviceMobile,
		},
		{
			name:           "Opera via OPR token",
			userAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 OPR/105.0.0.0",
			browser:        "Opera",
			browserVersion: "105.0.0.0",
			os:             "macOS",
			osVersion:      "10.15.7",
			device:         useragent.DeviceDesktop,
		},
		{
			name:           "Internet Explorer via Trident",
			userAgent:      "Mozilla/5.0 (Windows NT 10.0; WOW64; Trident/7.0; rv:11.0) like Gecko",
			browser:        "Internet Explorer",
			browserVersion: "11.0",
			os:             "Windows",
			osVersion:      "",
			device:         useragent.DeviceDesktop,
		},
		{
			name:      "Unparseable UA defaults to desktop and Unknown",
			userAgent: "curl-ish gibberish 42",
			browser:   useragent.Unknown,
			os:        useragent.Unknown,
			device:    useragent.DeviceDesktop,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := useragent.Classify(tc.userAgent)

			assert.Equal(t, tc.browser, c.Browser)
			assert.Equal(t, tc.browserVersion, c.BrowserVersion)
			assert.Equal(t, tc.os, c.OS)
			assert.Equal(t, tc.osVersion, c.OSVersion)
			assert.Equal(t, tc.device, c.Device)
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	first := useragent.Classify(ua)
	second := useragent.Classify(ua)

	assert.Equal(t, first, second)
}
