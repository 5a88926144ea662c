package browser

import (
	"net/url"
	"strings"
)

// Profile is the regional identity a session presents to a storefront.
type Profile struct {
	Locale         string
	TimezoneID     string
	Latitude       float64
	Longitude      float64
	AcceptLanguage string
}

var profiles = map[string]Profile{
	".tw": {Locale: "zh-TW", TimezoneID: "Asia/Taipei", Latitude: 25.0330, Longitude: 121.5654, AcceptLanguage: "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7"},
	".sg": {Locale: "en-SG", TimezoneID: "Asia/Singapore", Latitude: 1.3521, Longitude: 103.8198, AcceptLanguage: "en-SG,en;q=0.9,zh-SG;q=0.8"},
	".my": {Locale: "en-MY", TimezoneID: "Asia/Kuala_Lumpur", Latitude: 3.1390, Longitude: 101.6869, AcceptLanguage: "en-MY,en;q=0.9,ms;q=0.8"},
	".th": {Locale: "th-TH", TimezoneID: "Asia/Bangkok", Latitude: 13.7563, Longitude: 100.5018, AcceptLanguage: "th-TH,th;q=0.9,en;q=0.8"},
}

var defaultProfile = Profile{
	Locale:         "en-US",
	TimezoneID:     "America/New_York",
	Latitude:       40.7128,
	Longitude:      -74.0060,
	AcceptLanguage: "en-US,en;q=0.9",
}

// ProfileFor picks the profile matching the top level domain of baseURL.
func ProfileFor(baseURL string) Profile {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)
	for suffix, p := range profiles {
		if strings.HasSuffix(host, suffix) {
			return p
		}
	}
	return defaultProfile
}

// Host returns the host part of baseURL, or baseURL itself when it has none.
func Host(baseURL string) string {
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return baseURL
}
