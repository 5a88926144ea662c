package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/catalog-crawler/internal/models"
)

// Fields understood by FieldRule.
const (
	FieldName        = "name"
	FieldPrice       = "price"
	FieldRating      = "rating"
	FieldReviewCount = "review_count"
	FieldImage       = "image"
	FieldLink        = "link"
	FieldSold        = "sold"
	FieldShop        = "shop"
)

// Transform turns a raw candidate into a field value. Returning false rejects the
// candidate and the next one is tried.
type Transform func(string) (string, bool)

// MatchFirst keeps the first match of re, or its first group when re has one.
func MatchFirst(re *regexp.Regexp) Transform {
	return func(s string) (string, bool) {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return "", false
		}
		if len(m) > 1 && m[1] != "" {
			return m[1], true
		}
		return m[0], true
	}
}

// Contains accepts candidates holding any of subs, case-insensitively.
func Contains(subs ...string) Transform {
	return func(s string) (string, bool) {
		lower := strings.ToLower(s)
		for _, sub := range subs {
			if strings.Contains(lower, strings.ToLower(sub)) {
				return s, true
			}
		}
		return "", false
	}
}

// FieldRule describes where one field lives inside a card. Selectors are tried in
// order and the first accepted candidate wins. An empty selector addresses the card
// itself. Without Attrs the element text is used.
type FieldRule struct {
	Field     string
	Selectors []string
	Attrs     []string
	Parse     Transform
	MinLen    int
	// Reject drops candidates containing any of these words, case-insensitively.
	Reject []string
	// Lowest collects every parseable price under the first matching selector and
	// keeps the lowest.
	Lowest bool
}

// fieldContext carries what setters need to normalize values.
type fieldContext struct {
	base     string
	currency string
}

func (r FieldRule) accept(raw string) (string, bool) {
	v := CleanText(raw)
	if v == "" || len([]rune(v)) < r.MinLen {
		return "", false
	}
	if r.Field == FieldImage && strings.HasPrefix(v, "data:") {
		return "", false
	}
	lower := strings.ToLower(v)
	for _, w := range r.Reject {
		if strings.Contains(lower, w) {
			return "", false
		}
	}
	if r.Parse != nil {
		return r.Parse(v)
	}
	return v, true
}

func (r FieldRule) candidates(sel *goquery.Selection) []string {
	var out []string
	if len(r.Attrs) == 0 {
		out = append(out, sel.Text())
		return out
	}
	for _, attr := range r.Attrs {
		if v, ok := sel.Attr(attr); ok {
			out = append(out, v)
		}
	}
	return out
}

// Value returns the first accepted value for the rule inside root.
func (r FieldRule) Value(root *goquery.Selection) (string, bool) {
	for _, selector := range r.Selectors {
		matches := root
		if selector != "" {
			matches = root.Find(selector)
		}
		if matches.Length() == 0 {
			continue
		}
		if r.Lowest {
			if v, ok := r.lowest(matches); ok {
				return v, true
			}
			continue
		}
		var found string
		matches.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, c := range r.candidates(s) {
				if v, ok := r.accept(c); ok {
					found = v
					return false
				}
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

func (r FieldRule) lowest(matches *goquery.Selection) (string, bool) {
	var (
		best    string
		bestNum float64
	)
	matches.Each(func(_ int, s *goquery.Selection) {
		for _, c := range r.candidates(s) {
			v, ok := r.accept(c)
			if !ok {
				continue
			}
			n, ok := ParsePrice(v)
			if !ok {
				continue
			}
			if best == "" || n < bestNum {
				best, bestNum = v, n
			}
		}
	})
	return best, best != ""
}

// applyRules fills p from root using rules. Fields already set are left alone.
func applyRules(root *goquery.Selection, rules []FieldRule, p *models.Product, fc fieldContext) {
	for _, r := range rules {
		if fieldSet(p, r.Field) {
			continue
		}
		v, ok := r.Value(root)
		if !ok {
			continue
		}
		setField(p, r.Field, v, fc)
	}
}

func fieldSet(p *models.Product, field string) bool {
	switch field {
	case FieldName:
		return p.Name != ""
	case FieldPrice:
		return p.PriceNumeric != nil
	case FieldRating:
		return p.Rating != nil
	case FieldReviewCount:
		return p.ReviewCountNumeric != nil
	case FieldImage:
		return p.ImageURL != ""
	case FieldLink:
		return p.DetailURL != ""
	case FieldSold:
		return p.SoldCount != ""
	case FieldShop:
		return p.ShopName != ""
	}
	return false
}

func setField(p *models.Product, field, v string, fc fieldContext) {
	switch field {
	case FieldName:
		p.Name = v
	case FieldPrice:
		if n, ok := ParsePrice(v); ok {
			p.SetPrice(FormatPrice(v, fc.currency), n, DetectCurrency(v, fc.currency))
		}
	case FieldRating:
		if n, ok := ParseRating(v); ok {
			p.SetRating(n)
		}
	case FieldReviewCount:
		if raw, n, ok := ParseReviewCount(v); ok {
			p.SetReviewCount(raw, n)
		}
	case FieldImage:
		p.ImageURL = ResolveURL(fc.base, v)
	case FieldLink:
		p.DetailURL = ResolveURL(fc.base, v)
	case FieldSold:
		if sold, ok := ParseSold(v); ok {
			p.SoldCount = sold
		} else {
			p.SoldCount = v
		}
	case FieldShop:
		p.ShopName = v
	}
}
