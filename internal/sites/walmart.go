package sites

import (
	"github.com/maltedev/catalog-crawler/internal/parser"
	"github.com/maltedev/catalog-crawler/internal/verification"
)

func Walmart() Site {
	rules := verification.DefaultRules()
	rules.VerifyMarkers = append(rules.VerifyMarkers, "/blocked")

	return Site{
		Name:            "walmart",
		BaseURL:         "https://www.walmart.com",
		DefaultCurrency: "$",
		ResultWait:      `[data-automation-id="search-result-gridview-item"], [data-item-id]`,
		DetailWait:      `h1[itemprop="name"]`,
		CardSelectors: []string{
			`[data-automation-id="search-result-gridview-item"]`,
			"div.search-result-gridview-item",
			"[data-item-id]",
		},
		CardRules: []parser.FieldRule{
			{Field: parser.FieldName, Selectors: []string{`[data-automation-id="product-title"] a`, `[data-automation-id="product-title"]`, "a span.w_iUH7", "h3"}},
			{Field: parser.FieldPrice, Selectors: []string{`[data-automation-id="product-price"] span`, `[data-automation-id="product-price"]`, "span"}, Parse: parser.MatchFirst(dollarPrice)},
			{Field: parser.FieldRating, Selectors: []string{`[aria-label*="out of 5"]`}, Attrs: []string{"aria-label"}, Parse: parser.MatchFirst(outOfFive)},
			{Field: parser.FieldRating, Selectors: []string{"span.w_iUH7", "span"}, Parse: parser.MatchFirst(outOfFive)},
			{Field: parser.FieldReviewCount, Selectors: []string{`[data-testid="product-reviews"]`}, Attrs: []string{"data-value"}},
			{Field: parser.FieldReviewCount, Selectors: []string{"span"}, Parse: parser.MatchFirst(parenCount)},
			{Field: parser.FieldImage, Selectors: []string{`img[data-testid="productTileImage"]`, "img"}, Attrs: []string{"src", "data-src"}},
			{Field: parser.FieldLink, Selectors: []string{"a[link-identifier]", `a[href*="/ip/"]`, "a"}, Attrs: []string{"href"}},
		},
		Detail: parser.DetailSpec{
			Fields: []parser.FieldRule{
				{Field: parser.FieldName, Selectors: []string{`h1[itemprop="name"]`, "h1"}},
				{Field: parser.FieldPrice, Selectors: []string{`span[itemprop="price"]`, `[data-automation-id="product-price"]`, ".price-characteristic"}, Parse: parser.MatchFirst(dollarPrice)},
				{Field: parser.FieldRating, Selectors: []string{`[aria-label*="out of 5"]`}, Attrs: []string{"aria-label"}, Parse: parser.MatchFirst(outOfFive)},
				{Field: parser.FieldReviewCount, Selectors: []string{`[data-automation-id="product-review-count"]`, `a[href*="reviews"]`}},
			},
			Breadcrumbs:   []string{`nav[aria-label="Breadcrumb"] ol li a`, ".breadcrumb-list a", `ol[class*="breadcrumb"] a`},
			Colors:        []string{`[data-automation-id="product-color-option"]`, `button[aria-label*="Color"]`},
			Sizes:         []string{`[data-automation-id="product-size-option"]`, `button[aria-label*="Size"]`},
			AttributeRows: []string{`[data-automation-id="product-details"] table tr`, ".product-details-table tr", `[class*="specifications"] table tr`},
			About:         []string{`[data-automation-id="product-description"]`, ".product-description", "#about-product-section"},
			Images:        []string{`[data-automation-id="product-image"] img`, `[itemprop="image"]`},
		},
		Categories: parser.CategorySpec{
			Selectors: []string{"nav a", "header a", `a[aria-label*="Shop"]`, `a[role="menuitem"]`},
			BadWords:  []string{"sign", "account", "cart", "pickup", "reorder", "registry"},
			MinLen:    2,
			MaxLen:    40,
		},
		ProductPattern: re(`/ip/`),
		Rules:          rules,
		searchURL:      queryURL("/search", "q"),
	}
}
