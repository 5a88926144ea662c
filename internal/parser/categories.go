package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/catalog-crawler/internal/models"
)

// MaxCategories caps category discovery per site.
const MaxCategories = 20

// CategorySpec describes the navigation links that name catalog categories.
type CategorySpec struct {
	Selectors []string
	BadWords  []string
	MinLen    int
	MaxLen    int
	// FirstMatchOnly stops after the first selector that yields categories.
	FirstMatchOnly bool
	// NavFallback scans every link whose href contains one of these when the
	// selectors found nothing.
	NavFallback []string
	Limit       int
}

func (s CategorySpec) accept(name string) bool {
	n := len([]rune(name))
	minLen := s.MinLen
	if minLen <= 0 {
		minLen = 2
	}
	if n < minLen || (s.MaxLen > 0 && n > s.MaxLen) {
		return false
	}
	lower := strings.ToLower(name)
	for _, w := range s.BadWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return true
}

// ExtractCategories collects unique category names and links from a landing page.
func ExtractCategories(html, base string, spec CategorySpec) ([]models.Category, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	limit := spec.Limit
	if limit <= 0 {
		limit = MaxCategories
	}

	var cats []models.Category
	collect := func(s *goquery.Selection) {
		name := CleanText(s.Text())
		if !spec.accept(name) {
			return
		}
		href, _ := s.Attr("href")
		cats = append(cats, models.Category{Name: name, URL: ResolveURL(base, href)})
	}

	for _, sel := range spec.Selectors {
		before := len(cats)
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) { collect(s) })
		if spec.FirstMatchOnly && len(cats) > before {
			break
		}
	}

	if len(cats) == 0 && len(spec.NavFallback) > 0 {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			if containsAny(strings.ToLower(href), spec.NavFallback) {
				collect(s)
			}
		})
	}

	return models.DedupCategories(cats, limit), nil
}
