package sites

import (
	"github.com/maltedev/catalog-crawler/internal/parser"
	"github.com/maltedev/catalog-crawler/internal/verification"
)

func Ebay() Site {
	rules := verification.DefaultRules()
	rules.VerifyMarkers = append(rules.VerifyMarkers, "splashui/challenge")

	return Site{
		Name:            "ebay",
		BaseURL:         "https://www.ebay.com",
		DefaultCurrency: "$",
		ResultWait:      "li.s-item",
		DetailWait:      "h1#x-item-title-label, h1.x-item-title__mainTitle",
		CardSelectors: []string{
			"li.s-item",
			`[data-view*="mi:1686|iid:"]`,
			"li.s-card",
		},
		CardRules: []parser.FieldRule{
			{Field: parser.FieldName, Selectors: []string{"h3.s-item__title", ".s-item__title", ".s-card__title"}, Reject: []string{"shop on ebay"}},
			{Field: parser.FieldPrice, Selectors: []string{".s-item__price", ".s-card__price"}},
			{Field: parser.FieldRating, Selectors: []string{".x-star-rating span.clipped", ".x-star-rating"}, Parse: parser.MatchFirst(outOfFive)},
			{Field: parser.FieldRating, Selectors: []string{`[aria-label*="out of 5"]`}, Attrs: []string{"aria-label"}, Parse: parser.MatchFirst(outOfFive)},
			{Field: parser.FieldReviewCount, Selectors: []string{".s-item__reviews-count span", ".s-item__reviews-count"}},
			{Field: parser.FieldImage, Selectors: []string{"img.s-item__image-img", ".s-item__image img", "img"}, Attrs: []string{"src", "data-src"}},
			{Field: parser.FieldLink, Selectors: []string{"a.s-item__link", `a[href*="/itm/"]`}, Attrs: []string{"href"}},
		},
		Detail: parser.DetailSpec{
			Fields: []parser.FieldRule{
				{Field: parser.FieldName, Selectors: []string{"h1#x-item-title-label", `h1[id*="title"]`, "h1.it-ttl", ".x-item-title__mainTitle", "h1"}},
				{Field: parser.FieldPrice, Selectors: []string{`.notranslate[id*="prcIsum"]`, ".x-price-primary", ".notranslate", `[id*="Price"]`}},
				{Field: parser.FieldRating, Selectors: []string{`.ebay-review-start-rating[aria-label]`, `[aria-label*="out of 5"]`}, Attrs: []string{"aria-label"}, Parse: parser.MatchFirst(outOfFive)},
				{Field: parser.FieldReviewCount, Selectors: []string{`a[href*="feedback"]`, ".sellers-rating-count"}},
				{Field: parser.FieldShop, Selectors: []string{".x-sellercard-atf__info__about-seller a", ".mbg-nw"}},
			},
			Breadcrumbs:      []string{"ol.ebay-breadcrumb li a", ".breadcrumbs a", `nav[aria-label="Breadcrumb"] a`, `ol[role="navigation"] a`},
			Colors:           []string{"#msku-sel-1 option", `select[name*="Color"] option`},
			Sizes:            []string{"#msku-sel-2 option", `select[name*="Size"] option`},
			AttributeRows:    []string{"#viTabs_0_is table tr", ".itemAttr table tr"},
			AttributeBullets: []string{".ux-layout-section-evo__col"},
			About:            []string{"#viTabs_0_is", "#desc_wrapper_ctr", ".itemAttr"},
			Images:           []string{"#icImg", "#is_0 img", `img[itemprop="image"]`, ".ux-image-carousel-item img"},
		},
		Categories: parser.CategorySpec{
			Selectors: []string{"#gh-top .gh-nav a", `nav[role="navigation"] a`, `a[role="menuitem"]`, ".hl-cat-nav__container a"},
			BadWords:  []string{"sign", "daily deals", "sell", "help", "watchlist", "cart"},
			MinLen:    2,
			MaxLen:    40,
		},
		ProductPattern: re(`/itm/`),
		Rules:          rules,
		searchURL:      queryURL("/sch/i.html", "_nkw"),
	}
}
