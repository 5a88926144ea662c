package parser

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	numberPattern     = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	outOfFivePattern  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*out of\s*5`)
	leadingRating     = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)
	soldPattern       = regexp.MustCompile(`(?i)([\d,.]+[KMBkmb]?\+?)\s*sold`)
	soldCountPattern  = regexp.MustCompile(`([\d,.]+[KMBkmb]?\+?)`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	pricePattern      = regexp.MustCompile(`(?:RM|NT\$|S\$|฿|\$)\s?\d[\d,]*(?:\.\d+)?`)
)

// currencySymbols is checked in order; longer symbols containing "$" come first.
var currencySymbols = []string{"RM", "NT$", "฿", "S$", "$"}

// DetectCurrency finds the first known currency symbol in text and falls back to
// fallback when none is present.
func DetectCurrency(text, fallback string) string {
	for _, sym := range currencySymbols {
		if strings.Contains(text, sym) {
			return sym
		}
	}
	return fallback
}

// ParsePrice reads the first number in text, ignoring thousands separators.
func ParsePrice(text string) (float64, bool) {
	m := numberPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// FormatPrice keeps raw when it already carries a currency symbol and prefixes
// currency otherwise.
func FormatPrice(raw, currency string) string {
	raw = strings.TrimSpace(raw)
	if DetectCurrency(raw, "") != "" || currency == "" {
		return raw
	}
	return currency + raw
}

// ParseRating understands "4.3 out of 5 stars" and plain leading numbers. The
// result is clamped to [0, 5].
func ParseRating(text string) (float64, bool) {
	var m []string
	if m = outOfFivePattern.FindStringSubmatch(text); m == nil {
		if m = leadingRating.FindStringSubmatch(text); m == nil {
			return 0, false
		}
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return clampRating(v), true
}

func clampRating(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 5 {
		return 5
	}
	return v
}

// ParseReviewCount returns the first comma formatted integer in text both as
// written and as a number.
func ParseReviewCount(text string) (string, int, bool) {
	m := numberPattern.FindString(text)
	if m == "" {
		return "", 0, false
	}
	if i := strings.IndexByte(m, '.'); i >= 0 {
		m = m[:i]
	}
	m = strings.TrimRight(m, ",")
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return "", 0, false
	}
	return m, n, true
}

// ParseSold extracts counts such as "1.2k+" from "1.2k+ sold".
func ParseSold(text string) (string, bool) {
	if m := soldPattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// CleanText collapses whitespace.
func CleanText(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// ResolveURL makes href absolute against base. Empty, javascript and fragment
// links are dropped.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return href
	}
	return b.ResolveReference(ref).String()
}

// Origin returns scheme and host of raw, or raw without a trailing slash when it
// does not parse as an absolute URL.
func Origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	return u.Scheme + "://" + u.Host
}
