package sites

import (
	"regexp"

	"github.com/maltedev/catalog-crawler/internal/parser"
	"github.com/maltedev/catalog-crawler/internal/verification"
)

var amazonThumb = regexp.MustCompile(`\._AC_[A-Z]{2}\d+_\.`)

func Amazon() Site {
	return Site{
		Name:            "amazon",
		BaseURL:         "https://www.amazon.com",
		DefaultCurrency: "$",
		ResultWait:      `[data-component-type="s-search-result"]`,
		DetailWait:      "#productTitle",
		CardSelectors: []string{
			`[data-component-type="s-search-result"]`,
			".s-result-item",
			"[data-asin]",
		},
		CardRules: []parser.FieldRule{
			{Field: parser.FieldName, Selectors: []string{"h2 a span", "h2 span", "h2"}, MinLen: 3},
			{Field: parser.FieldPrice, Selectors: []string{".a-price .a-offscreen", ".a-price", "span"}, Parse: parser.MatchFirst(dollarPrice)},
			{Field: parser.FieldRating, Selectors: []string{"span.a-icon-alt", "[aria-label*=\"out of 5\"]", "span"}, Parse: parser.MatchFirst(outOfFive)},
			{Field: parser.FieldRating, Selectors: []string{"[aria-label*=\"out of 5\"]"}, Attrs: []string{"aria-label"}, Parse: parser.MatchFirst(outOfFive)},
			{Field: parser.FieldReviewCount, Selectors: []string{"[aria-label$=\"ratings\"]", "[aria-label$=\"reviews\"]"}, Attrs: []string{"aria-label"}},
			{Field: parser.FieldReviewCount, Selectors: []string{"span"}, Parse: parser.MatchFirst(parenCount)},
			{Field: parser.FieldImage, Selectors: []string{"img.s-image", "img"}, Attrs: []string{"src", "data-src"}},
			{Field: parser.FieldLink, Selectors: []string{"a[href*=\"/dp/\"]", "a[href*=\"/gp/product/\"]", "h2 a"}, Attrs: []string{"href"}},
		},
		Detail: parser.DetailSpec{
			Fields: []parser.FieldRule{
				{Field: parser.FieldName, Selectors: []string{"#productTitle", "h1"}},
				{Field: parser.FieldPrice, Selectors: []string{"#corePrice_feature_div .a-offscreen", ".a-price .a-offscreen", "#priceblock_ourprice"}, Parse: parser.MatchFirst(dollarPrice)},
				{Field: parser.FieldRating, Selectors: []string{"#acrPopover"}, Attrs: []string{"title"}, Parse: parser.MatchFirst(outOfFive)},
				{Field: parser.FieldRating, Selectors: []string{"#averageCustomerReviews .a-icon-alt", "span[data-hook=\"rating-out-of-text\"]"}, Parse: parser.MatchFirst(outOfFive)},
				{Field: parser.FieldReviewCount, Selectors: []string{"#acrCustomerReviewText"}},
				{Field: parser.FieldImage, Selectors: []string{"#landingImage"}, Attrs: []string{"data-old-hires", "src"}},
			},
			Breadcrumbs:      []string{"#wayfinding-breadcrumbs_feature_div ul li a", "#wayfinding-breadcrumbs_feature_div a"},
			Colors:           []string{"#variation_color_name li img", "#inline-twister-row-color_name li img"},
			Sizes:            []string{"#native_dropdown_selected_size_name option", "#variation_size_name li .a-size-base"},
			AttributeRows:    []string{"#productDetails_techSpec_section_1 tr, #productDetails_detailBullets_sections1 tr", "#productOverview_feature_div tr"},
			AttributeBullets: []string{"#detailBullets_feature_div li"},
			About:            []string{"#feature-bullets", "#featurebullets_feature_div"},
			Images:           []string{"#altImages ul li img", "#landingImage"},
			ImageUpgrade:     func(u string) string {
				return amazonThumb.ReplaceAllString(u, "._AC_SL1500_.")
			},
		},
		Categories: parser.CategorySpec{
			Selectors: []string{"#nav-xshop a", ".nav-a", "#nav-main a", ".nav-flyout-content a", ".nav-panel a"},
			BadWords:  []string{"search", "sign", "account", "cart"},
			MinLen:    3,
			MaxLen:    49,
		},
		ProductPattern: re(`/dp/|/gp/product/`),
		Rules:          verification.DefaultRules(),
		searchURL:      queryURL("/s", "k"),
	}
}
