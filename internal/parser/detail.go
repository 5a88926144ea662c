package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/catalog-crawler/internal/models"
)

const (
	maxBreadcrumbs = 6
	maxAboutItems  = 10
	maxImages      = 5
)

// DetailSpec says where a product page keeps the fields a search card lacks.
type DetailSpec struct {
	Fields        []FieldRule
	Breadcrumbs   []string
	Colors        []string
	Sizes         []string
	AttributeRows []string
	// AttributeBullets hold "key : value" list items.
	AttributeBullets []string
	About            []string
	AboutMinLen      int
	Images           []string
	// ImageUpgrade rewrites thumbnail URLs to their large variant.
	ImageUpgrade func(string) string
}

var optionRejects = []string{"select", "choose"}

// ExtractDetail reads a product page. LD+JSON is applied first and the DOM fills
// whatever it left empty.
func ExtractDetail(html, pageURL string, spec DetailSpec, currency string) (*models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	p := models.NewProduct("")
	for _, node := range LDNodes(doc) {
		if ldType(node) != "Product" {
			continue
		}
		if ld := ProductFromLD(node, pageURL, currency); ld != nil {
			p = ld
			break
		}
	}

	fc := fieldContext{base: pageURL, currency: currency}
	applyRules(doc.Selection, spec.Fields, p, fc)

	if path := breadcrumbs(doc, spec.Breadcrumbs); path != "" {
		p.CategoryPath = path
	}
	if colors := colorOptions(doc, spec.Colors); len(colors) > 0 {
		p.ColorOptions = colors
	}
	if sizes := sizeOptions(doc, spec.Sizes); len(sizes) > 0 {
		p.SizeOptions = sizes
	}
	if attrs := attributes(doc, spec.AttributeRows, spec.AttributeBullets); len(attrs) > 0 {
		p.Attributes = attrs
	}

	minLen := spec.AboutMinLen
	if minLen <= 0 {
		minLen = 20
	}
	if about := aboutItems(doc, spec.About, minLen); len(about) > 0 {
		p.AboutThisItem = about
	}

	if images := imageList(doc, spec.Images, pageURL, spec.ImageUpgrade); len(images) > 0 {
		if len(p.Images) == 0 {
			p.Images = images
		}
		if p.ImageURL == "" {
			p.ImageURL = images[0]
		}
	}

	if p.DetailURL == "" {
		p.DetailURL = pageURL
	}
	return p, nil
}

func breadcrumbs(doc *goquery.Document, selectors []string) string {
	m := firstMatch(doc.Selection, selectors)
	if m == nil {
		return ""
	}
	var parts []string
	m.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := CleanText(s.Text()); t != "" && t != ">" && t != "›" {
			parts = append(parts, t)
		}
		return len(parts) < maxBreadcrumbs
	})
	return strings.Join(parts, " > ")
}

func optionText(s *goquery.Selection) string {
	if t := CleanText(s.Text()); t != "" {
		return t
	}
	for _, attr := range []string{"aria-label", "title", "data-value", "alt", "value"} {
		if v, ok := s.Attr(attr); ok && CleanText(v) != "" {
			return CleanText(v)
		}
	}
	return ""
}

func rejectedOption(v string) bool {
	lower := strings.ToLower(v)
	for _, w := range optionRejects {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func colorOptions(doc *goquery.Document, selectors []string) []models.ColorOption {
	m := firstMatch(doc.Selection, selectors)
	if m == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []models.ColorOption
	m.Each(func(_ int, s *goquery.Selection) {
		name := optionText(s)
		if name == "" || rejectedOption(name) {
			return
		}
		var price string
		if pt := CleanText(s.Find(`[class*="price"]`).First().Text()); pt != "" {
			price = pt
			name = CleanText(strings.Replace(name, pt, "", 1))
		} else if v, ok := s.Attr("data-price"); ok {
			price = CleanText(v)
		}
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, models.ColorOption{Name: name, Price: price})
	})
	return out
}

func sizeOptions(doc *goquery.Document, selectors []string) []string {
	m := firstMatch(doc.Selection, selectors)
	if m == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	m.Each(func(_ int, s *goquery.Selection) {
		v := optionText(s)
		if v == "" || rejectedOption(v) || strings.EqualFold(v, "size") {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	})
	return out
}

// cleanKey strips direction marks and trailing colons that pages put around labels.
func cleanKey(s string) string {
	s = strings.NewReplacer("\u200e", "", "\u200f", "").Replace(s)
	return strings.TrimSpace(strings.TrimRight(CleanText(s), ":"))
}

func attributes(doc *goquery.Document, rows, bullets []string) map[string]string {
	attrs := make(map[string]string)
	if m := firstMatch(doc.Selection, rows); m != nil {
		m.Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("th, td")
			if cells.Length() < 2 {
				return
			}
			key := cleanKey(cells.Eq(0).Text())
			value := cleanKey(cells.Eq(1).Text())
			if key != "" && value != "" {
				attrs[key] = value
			}
		})
	}
	if m := firstMatch(doc.Selection, bullets); m != nil {
		m.Each(func(_ int, item *goquery.Selection) {
			key, value, ok := strings.Cut(item.Text(), ":")
			if !ok {
				return
			}
			key, value = cleanKey(key), cleanKey(value)
			if key == "" || value == "" {
				return
			}
			if _, exists := attrs[key]; !exists {
				attrs[key] = value
			}
		})
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

func aboutItems(doc *goquery.Document, selectors []string, minLen int) []string {
	m := firstMatch(doc.Selection, selectors)
	if m == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) bool {
		t = CleanText(t)
		if len([]rune(t)) <= minLen {
			return true
		}
		if _, ok := seen[t]; ok {
			return true
		}
		seen[t] = struct{}{}
		out = append(out, t)
		return len(out) < maxAboutItems
	}
	m.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		items := s.Find("li, p")
		if items.Length() == 0 {
			return add(s.Text())
		}
		more := true
		items.EachWithBreak(func(_ int, it *goquery.Selection) bool {
			more = add(it.Text())
			return more
		})
		return more
	})
	return out
}

func imageList(doc *goquery.Document, selectors []string, base string, upgrade func(string) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, sel := range selectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, attr := range []string{"data-old-hires", "src", "data-src"} {
				v, ok := s.Attr(attr)
				if !ok || v == "" || strings.HasPrefix(v, "data:") {
					continue
				}
				u := ResolveURL(base, v)
				if upgrade != nil {
					u = upgrade(u)
				}
				if _, dup := seen[u]; !dup && u != "" {
					seen[u] = struct{}{}
					out = append(out, u)
				}
				break
			}
			return len(out) < maxImages
		})
		if len(out) >= maxImages {
			break
		}
	}
	return out
}
