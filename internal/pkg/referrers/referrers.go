// Package referrers classifies referrer hostnames into traffic channels.
package referrers

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Channel sentinels. Direct matches the dashboard's display label for
// traffic without a referrer.
const (
	ChannelDirect   = "Direct / None"
	ChannelReferral = "Referral"
)

//go:embed channels.yml
var channelsDatabase []byte

type channelEntry struct {
	Name    string   `yaml:"name"`
	Domains []string `yaml:"domains"`
}

var (
	once     sync.Once
	byDomain map[string]string
	parseErr error
)

func load() {
	once.Do(func() {
		var entries []channelEntry
		if err := yaml.Unmarshal(channelsDatabase, &entries); err != nil {
			parseErr = fmt.Errorf("failed to parse channels database: %w", err)
			return
		}
		byDomain = make(map[string]string)
		for _, entry := range entries {
			for _, domain := range entry.Domains {
				byDomain[domain] = entry.Name
			}
		}
	})
}

// Channel maps a referrer hostname to its traffic channel. An empty
// hostname is direct traffic; an unrecognized one is a plain referral.
// Subdomains inherit the parent domain's channel unless listed explicitly.
func Channel(hostname string) string {
	load()
	if parseErr != nil || hostname == "" {
		if hostname == "" {
			return ChannelDirect
		}
		return ChannelReferral
	}

	host := strings.ToLower(strings.TrimPrefix(hostname, "www."))
	if channel, ok := byDomain[host]; ok {
		return channel
	}

	// Walk up the domain: news.google.com -> google.com
	for idx := strings.Index(host, "."); idx > 0; idx = strings.Index(host, ".") {
		host = host[idx+1:]
		if channel, ok := byDomain[host]; ok {
			return channel
		}
	}

	return ChannelReferral
}
