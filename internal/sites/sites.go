// Package sites holds the per-site capability sets: URLs, selectors, login rules
// and the extraction pipeline each catalog needs.
package sites

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/maltedev/catalog-crawler/internal/parser"
	"github.com/maltedev/catalog-crawler/internal/verification"
)

var ErrUnknownSite = errors.New("unknown site")

// Site describes one catalog. Values are copied per run so overrides never leak
// between sessions.
type Site struct {
	Name            string
	BaseURL         string
	DefaultCurrency string

	ResultWait    string
	DetailWait    string
	CardSelectors []string
	CardRules     []parser.FieldRule
	Detail        parser.DetailSpec
	Categories    parser.CategorySpec

	// ProductPattern matches product page links in mirror output.
	ProductPattern *regexp.Regexp
	// PriceDivisor and ImageBase tune the structured strategy for sites that store
	// prices in minor units or images as bare ids.
	PriceDivisor float64
	ImageBase    string

	// WarmUp visits the home page before the first search.
	WarmUp   bool
	Reviews  bool
	Rules    verification.Rules
	loginRel string

	searchURL func(base, term string) string
}

var registry = map[string]func() Site{
	"amazon":  Amazon,
	"ebay":    Ebay,
	"walmart": Walmart,
	"shopee":  Shopee,
}

// Names lists the registered sites in a stable order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Lookup(name string) (Site, error) {
	build, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Site{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownSite, name, strings.Join(Names(), ", "))
	}
	return build(), nil
}

// WithBaseURL points the site at another region or mirror host.
func (s Site) WithBaseURL(base string) Site {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return s
	}
	s.BaseURL = base
	if s.loginRel != "" {
		s.Rules.LoginURL = base + s.loginRel
	}
	if s.ImageBase != "" {
		s.ImageBase = imageBaseFor(base)
	}
	return s
}

// WithCurrency overrides the currency assumed for prices without a symbol.
func (s Site) WithCurrency(currency string) Site {
	if currency != "" {
		s.DefaultCurrency = currency
	}
	return s
}

func (s Site) SearchURL(term string) string {
	return s.searchURL(s.BaseURL, strings.TrimSpace(term))
}

func (s Site) Host() string {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Pipeline builds the structured, selector and render-proxy chain. The render
// proxy is left out when fetcher is nil.
func (s Site) Pipeline(fetcher parser.Fetcher, mirror string, limit int, logger *slog.Logger) *parser.Pipeline {
	strategies := []parser.Strategy{
		&parser.StructuredStrategy{
			BaseURL:      s.BaseURL,
			Currency:     s.DefaultCurrency,
			PriceDivisor: s.PriceDivisor,
			ImageBase:    s.ImageBase,
		},
		&parser.SelectorStrategy{
			Cards:    s.CardSelectors,
			Rules:    s.CardRules,
			BaseURL:  s.BaseURL,
			Currency: s.DefaultCurrency,
			Limit:    limit,
		},
	}
	if fetcher != nil {
		strategies = append(strategies, &parser.RenderProxyStrategy{
			Fetcher:        fetcher,
			Mirror:         mirror,
			ProductPattern: s.ProductPattern,
			Currency:       s.DefaultCurrency,
			Limit:          limit,
		})
	}
	return parser.NewPipeline(logger, strategies...)
}

func queryURL(path, param string) func(base, term string) string {
	return func(base, term string) string {
		return base + path + "?" + param + "=" + url.QueryEscape(term)
	}
}

func imageBaseFor(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return "https://cf." + strings.TrimPrefix(u.Hostname(), "www.") + "/file"
}

func re(pattern string) *regexp.Regexp {
	return regexp.MustCompile(pattern)
}

var (
	dollarPrice = re(`\$\s?[\d,]+(?:\.\d+)?`)
	outOfFive   = re(`\d+(?:\.\d+)?\s*out of\s*5`)
	parenCount  = re(`\(\s*([\d,]+)\s*\)`)
)
