// Package cookies loads, normalizes and persists browser cookie snapshots.
package cookies

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/catalog-crawler/internal/storage"
)

const (
	SameSiteStrict = "Strict"
	SameSiteLax    = "Lax"
	SameSiteNone   = "None"
)

type Entry struct {
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	Domain         string   `json:"domain"`
	Path           string   `json:"path,omitempty"`
	Expires        float64  `json:"expires,omitempty"`
	ExpirationDate *float64 `json:"expirationDate,omitempty"`
	HTTPOnly       bool     `json:"httpOnly,omitempty"`
	Secure         bool     `json:"secure,omitempty"`
	SameSite       string   `json:"sameSite"`
}

// NormalizeSameSite maps any sameSite spelling onto Strict, Lax or None.
// Unknown and empty values become Lax.
func NormalizeSameSite(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return SameSiteStrict
	case "none", "no_restriction":
		return SameSiteNone
	default:
		return SameSiteLax
	}
}

// Normalize drops entries without a domain and canonicalizes the rest.
func Normalize(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Domain) == "" {
			continue
		}
		e.SameSite = NormalizeSameSite(e.SameSite)
		if e.Path == "" {
			e.Path = "/"
		}
		if e.Expires == 0 && e.ExpirationDate != nil {
			e.Expires = *e.ExpirationDate
		}
		e.ExpirationDate = nil
		out = append(out, e)
	}
	return out
}

// Parse decodes a snapshot and normalizes it.
func Parse(data []byte) ([]Entry, error) {
	var raw []Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode cookie snapshot: %w", err)
	}
	return Normalize(raw), nil
}

// Load reads a snapshot file. A missing file yields no entries and no error.
func Load(path string) ([]Entry, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cookie snapshot: %w", err)
	}
	return Parse(data)
}

func Save(path string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	return storage.WriteJSON(path, entries)
}

func sameSiteAttribute(v string) *playwright.SameSiteAttribute {
	switch NormalizeSameSite(v) {
	case SameSiteStrict:
		return playwright.SameSiteAttributeStrict
	case SameSiteNone:
		return playwright.SameSiteAttributeNone
	default:
		return playwright.SameSiteAttributeLax
	}
}

// ToPlaywright converts normalized entries for BrowserContext.AddCookies.
func ToPlaywright(entries []Entry) []playwright.OptionalCookie {
	out := make([]playwright.OptionalCookie, 0, len(entries))
	for _, e := range entries {
		c := playwright.OptionalCookie{
			Name:     e.Name,
			Value:    e.Value,
			Domain:   playwright.String(e.Domain),
			Path:     playwright.String(e.Path),
			HttpOnly: playwright.Bool(e.HTTPOnly),
			Secure:   playwright.Bool(e.Secure),
			SameSite: sameSiteAttribute(e.SameSite),
		}
		if e.Expires > 0 {
			c.Expires = playwright.Float(e.Expires)
		}
		out = append(out, c)
	}
	return out
}

// FromPlaywright converts the browser's cookie jar into snapshot entries.
func FromPlaywright(jar []playwright.Cookie) []Entry {
	out := make([]Entry, 0, len(jar))
	for _, c := range jar {
		sameSite := SameSiteLax
		if c.SameSite != nil {
			sameSite = NormalizeSameSite(string(*c.SameSite))
		}
		out = append(out, Entry{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
			SameSite: sameSite,
		})
	}
	return out
}
