// Package useragent classifies raw user-agent strings into coarse
// browser, operating system and device buckets for analytics.
package useragent

import (
	"strings"

	"go.elara.ws/pcre"
)

// Device buckets. Tablet detection runs before mobile: an Android UA
// without a "Mobile" token is a tablet, not a desktop.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// Unknown is the sentinel for browsers and operating systems that match
// no known pattern. An unparseable UA is never an error.
const Unknown = "Unknown"

// Classification is the flat enrichment record merged into events.
type Classification struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	Device         string
}

var (
	// The android alternative needs a negative lookahead (no "mobi" token),
	// which the standard regexp package cannot express.
	tabletRe = pcre.MustCompile(`(?i)(tablet|ipad|playbook|silk)|(android(?!.*mobi))`)
	mobileRe = pcre.MustCompile(`Mobile|Android|iP(hone|od)|IEMobile|BlackBerry|Kindle|Silk-Accelerated|(hpw|web)os|Opera M(obi|ini)`)

	firefoxVersionRe = pcre.MustCompile(`firefox/([\d.]+)`)
	samsungVersionRe = pcre.MustCompile(`samsungbrowser/([\d.]+)`)
	operaVersionRe   = pcre.MustCompile(`(?:opera|opr)/([\d.]+)`)
	tridentVersionRe = pcre.MustCompile(`rv:([\d.]+)`)
	edgeVersionRe    = pcre.MustCompile(`(?:edge|edg)/([\d.]+)`)
	chromeVersionRe  = pcre.MustCompile(`chrome/([\d.]+)`)
	safariVersionRe  = pcre.MustCompile(`version/([\d.]+)`)

	androidVersionRe = pcre.MustCompile(`android ([\d.]+)`)
	iosVersionRe     = pcre.MustCompile(`os ([\d_]+)`)
	macVersionRe     = pcre.MustCompile(`mac os x ([\d_]+)`)
)

// browserPattern pairs a substring probe with the version capture for it.
// Order matters: Chrome-based browsers also carry "Safari" (and often
// "Chrome") tokens, so the more specific entries must come first.
type browserPattern struct {
	tokens    []string
	name      string
	versionRe *pcre.Regexp
}

var browserPatterns = []browserPattern{
	{[]string{"firefox"}, "Firefox", firefoxVersionRe},
	{[]string{"samsungbrowser"}, "Samsung Internet", samsungVersionRe},
	{[]string{"opera", "opr"}, "Opera", operaVersionRe},
	{[]string{"trident"}, "Internet Explorer", tridentVersionRe},
	{[]string{"edge", "edg"}, "Edge", edgeVersionRe},
	{[]string{"chrome"}, "Chrome", chromeVersionRe},
	{[]string{"safari"}, "Safari", safariVersionRe},
}

// Classify derives the coarse browser/OS/device classification from a raw
// user-agent string. It is a pure function and never fails: unmatched
// input yields desktop/Unknown.
func Classify(userAgent string) Classification {
	ua := strings.ToLower(userAgent)

	c := Classification{
		Browser: Unknown,
		OS:      Unknown,
		Device:  classifyDevice(userAgent, ua),
	}

	for _, p := range browserPatterns {
		if containsAny(ua, p.tokens) {
			c.Browser = p.name
			c.BrowserVersion = firstCapture(p.versionRe, ua)
			break
		}
	}

	c.OS, c.OSVersion = classifyOS(ua)

	return c
}

func classifyDevice(userAgent, ua string) string {
	if tabletRe.MatchString(ua) {
		return DeviceTablet
	}
	// The mobile probe is case-sensitive on the raw string: "Mobile" is a
	// UA token, while lowercase "mobile" appears inside unrelated words.
	if mobileRe.MatchString(userAgent) {
		return DeviceMobile
	}
	return DeviceDesktop
}

func classifyOS(ua string) (string, string) {
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows", ""
	case strings.Contains(ua, "android"):
		return "Android", firstCapture(androidVersionRe, ua)
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ipod"):
		return "iOS", strings.ReplaceAll(firstCapture(iosVersionRe, ua), "_", ".")
	case strings.Contains(ua, "mac"):
		return "macOS", strings.ReplaceAll(firstCapture(macVersionRe, ua), "_", ".")
	case strings.Contains(ua, "linux"):
		return "Linux", ""
	}
	return Unknown, ""
}

func containsAny(s string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

func firstCapture(re *pcre.Regexp, s string) string {
	matches := re.FindStringSubmatch(s)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}
