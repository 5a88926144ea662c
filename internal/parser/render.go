package parser

import (
	"context"
	"fmt"
	"regexp"

	"github.com/maltedev/catalog-crawler/internal/models"
)

// DefaultMirror renders a page remotely and returns it as markdown.
const DefaultMirror = "https://r.jina.ai/"

const renderWindow = 400

var markdownLink = regexp.MustCompile(`\[([^\[\]]+)\]\((https?://[^)\s]+)\)`)

// Fetcher returns the body served at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// RenderProxyStrategy asks a rendering mirror for the page and mines product links
// out of the returned markdown. Price and rating are read from the text that
// follows each link.
type RenderProxyStrategy struct {
	Fetcher Fetcher
	Mirror  string
	// ProductPattern selects links that point at product pages.
	ProductPattern *regexp.Regexp
	Currency       string
	Limit          int
}

func (s *RenderProxyStrategy) Name() string { return "render_proxy" }

func (s *RenderProxyStrategy) Extract(ctx context.Context, in Input) ([]models.Product, error) {
	if s.Fetcher == nil || in.URL == "" {
		return nil, nil
	}
	mirror := s.Mirror
	if mirror == "" {
		mirror = DefaultMirror
	}
	body, err := s.Fetcher.Fetch(ctx, mirror+in.URL)
	if err != nil {
		return nil, fmt.Errorf("render mirror fetch failed: %w", err)
	}
	return s.Parse(body), nil
}

// Parse extracts records from mirror markdown.
func (s *RenderProxyStrategy) Parse(markdown string) []models.Product {
	var links [][]int
	for _, m := range markdownLink.FindAllStringSubmatchIndex(markdown, -1) {
		// image links render as ![alt](src)
		if m[0] > 0 && markdown[m[0]-1] == '!' {
			continue
		}
		if s.ProductPattern != nil && !s.ProductPattern.MatchString(markdown[m[4]:m[5]]) {
			continue
		}
		links = append(links, m)
	}

	seen := make(map[string]struct{})
	var products []models.Product
	for i, m := range links {
		name := CleanText(markdown[m[2]:m[3]])
		link := markdown[m[4]:m[5]]
		if len([]rune(name)) < 4 {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}

		end := m[1] + renderWindow
		if i+1 < len(links) && links[i+1][0] < end {
			end = links[i+1][0]
		}
		if end > len(markdown) {
			end = len(markdown)
		}
		window := markdown[m[1]:end]

		p := models.NewProduct(name)
		p.DetailURL = link
		if raw := pricePattern.FindString(window); raw != "" {
			if n, ok := ParsePrice(raw); ok {
				p.SetPrice(raw, n, DetectCurrency(raw, s.Currency))
			}
		}
		if r := outOfFivePattern.FindString(window); r != "" {
			if n, ok := ParseRating(r); ok {
				p.SetRating(n)
			}
		}
		products = append(products, *p)
		if s.Limit > 0 && len(products) >= s.Limit {
			break
		}
	}
	return products
}
