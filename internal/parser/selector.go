package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/catalog-crawler/internal/models"
)

// SelectorStrategy reads product cards out of the rendered DOM. The first card
// selector with matches defines the cards; field rules then run inside each card.
type SelectorStrategy struct {
	Cards    []string
	Rules    []FieldRule
	BaseURL  string
	Currency string
	Limit    int
}

func (s *SelectorStrategy) Name() string { return "selector" }

func (s *SelectorStrategy) Extract(ctx context.Context, in Input) ([]models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	cards := firstMatch(doc.Selection, s.Cards)
	if cards == nil {
		return nil, nil
	}

	fc := fieldContext{base: s.base(in.URL), currency: s.Currency}
	var products []models.Product
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}
		p := models.NewProduct("")
		applyRules(card, s.Rules, p, fc)
		if !p.Valid() {
			return true
		}
		products = append(products, *p)
		return s.Limit <= 0 || len(products) < s.Limit
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *SelectorStrategy) base(pageURL string) string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return pageURL
}

// firstMatch returns the matches of the first selector that finds anything.
func firstMatch(root *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if m := root.Find(sel); m.Length() > 0 {
			return m
		}
	}
	return nil
}
