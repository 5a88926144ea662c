package verification

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Wall is the kind of interstitial a page presents.
type Wall int

const (
	NoWall Wall = iota
	LoginWall
	VerifyWall
)

// BlockKind labels why a page looks blocked. It is informational only: every kind is
// handled by the same poll and timeout logic.
type BlockKind string

const (
	BlockNone        BlockKind = ""
	BlockCaptcha     BlockKind = "captcha"
	BlockRateLimited BlockKind = "rate_limited"
	BlockForbidden   BlockKind = "forbidden"
	BlockBlank       BlockKind = "blank"
)

// Page is the inspected state after a navigation.
type Page struct {
	URL     string
	Title   string
	Content string
}

// Rules describe how a site signals login and verification walls.
type Rules struct {
	LoginURL          string
	LoginPath         string
	VerifyMarkers     []string
	LoginTitleWords   []string
	LoginFormSelector []string
	LoginKeywords     []string
	EmailSelectors    []string
	PasswordSelectors []string
	SubmitSelectors   []string
}

// DefaultRules match generic captcha and verify interstitials and never report a
// login wall.
func DefaultRules() Rules {
	return Rules{
		VerifyMarkers: []string{"/verify", "captcha", "/robot"},
	}
}

func (r Rules) onLoginPath(url string) bool {
	return r.LoginPath != "" && strings.Contains(strings.ToLower(url), strings.ToLower(r.LoginPath))
}

func (r Rules) onVerifyPath(url string) bool {
	url = strings.ToLower(url)
	for _, m := range r.VerifyMarkers {
		if m != "" && strings.Contains(url, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// Detect classifies a page. URL markers win over title and DOM checks; the DOM checks
// only run for sites with a login path.
func (r Rules) Detect(p Page) Wall {
	if r.onLoginPath(p.URL) {
		return LoginWall
	}
	if r.onVerifyPath(p.URL) {
		return VerifyWall
	}
	if r.LoginPath == "" {
		return NoWall
	}

	title := strings.ToLower(p.Title)
	for _, w := range r.LoginTitleWords {
		if strings.Contains(title, strings.ToLower(w)) {
			return LoginWall
		}
	}

	if p.Content == "" {
		return NoWall
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.Content))
	if err != nil {
		return NoWall
	}
	if title == "" {
		title = strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
		for _, w := range r.LoginTitleWords {
			if strings.Contains(title, strings.ToLower(w)) {
				return LoginWall
			}
		}
	}
	for _, sel := range r.LoginFormSelector {
		if doc.Find(sel).Length() > 0 {
			return LoginWall
		}
	}

	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if len(text) > 500 {
		text = text[:500]
	}
	text = strings.ToLower(text)
	for _, kw := range r.LoginKeywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return LoginWall
		}
	}
	return NoWall
}

var blockMarkers = []struct {
	kind    BlockKind
	markers []string
}{
	{BlockCaptcha, []string{"captcha", "robot check", "type the characters you see", "are you a human", "press & hold"}},
	{BlockRateLimited, []string{"traffic/error", "too many requests", "rate limit", "unusual traffic"}},
	{BlockForbidden, []string{"access denied", "403 forbidden", "request blocked"}},
}

// Classify guesses why a page is blocked.
func Classify(p Page) BlockKind {
	if len(strings.TrimSpace(p.Content)) < 100 {
		return BlockBlank
	}
	haystack := strings.ToLower(p.URL + " " + p.Title)
	body := strings.ToLower(p.Content)
	if len(body) > 4000 {
		body = body[:4000]
	}
	for _, m := range blockMarkers {
		for _, marker := range m.markers {
			if strings.Contains(haystack, marker) || strings.Contains(body, marker) {
				return m.kind
			}
		}
	}
	return BlockNone
}
