package sites

import (
	"net/url"
	"regexp"

	"github.com/maltedev/catalog-crawler/internal/parser"
	"github.com/maltedev/catalog-crawler/internal/verification"
)

const shopeeLoginPath = "/buyer/login"

var (
	shopeeSold    = regexp.MustCompile(`(?i)[\d,.]+[kmb]?\+?\s*sold`)
	shopeeRating  = regexp.MustCompile(`^\d(?:\.\d+)?$`)
	shopeeReviews = regexp.MustCompile(`(?i)([\d,]+)\s*reviews?`)
)

func shopeeRules(base string) verification.Rules {
	return verification.Rules{
		LoginURL:        base + shopeeLoginPath,
		LoginPath:       shopeeLoginPath,
		VerifyMarkers:   []string{"/verify", "traffic/error", "captcha"},
		LoginTitleWords: []string{"login", "登入", "登錄"},
		LoginFormSelector: []string{
			`input[name="loginKey"]`,
			`input[name="loginid"]`,
			`input[id*="login"]`,
			`input[type="password"]`,
		},
		LoginKeywords: []string{"立即登入", "login to", "登入以繼續", "login now", "請登入"},
		EmailSelectors: []string{
			`input[type="email"]`,
			`input[name="loginKey"]`,
			`input[placeholder*="email"]`,
			`input[placeholder*="Email"]`,
			`input[placeholder*="電子郵件"]`,
			`input[id*="email"]`,
			`input[id*="login"]`,
		},
		PasswordSelectors: []string{
			`input[type="password"]`,
			`input[name="password"]`,
			`input[placeholder*="password"]`,
			`input[placeholder*="Password"]`,
			`input[placeholder*="密碼"]`,
		},
		SubmitSelectors: []string{
			`button[type="submit"]`,
			`button:has-text("登入")`,
			`button:has-text("Login")`,
			`button:has-text("登錄")`,
			"button.login-button",
			`button[class*="login"]`,
			`form button[type="submit"]`,
			"form button",
		},
	}
}

func Shopee() Site {
	const base = "https://shopee.sg"
	return Site{
		Name:            "shopee",
		BaseURL:         base,
		DefaultCurrency: "S$",
		ResultWait:      `.shopee-search-item-result__item, [data-sqe="item"]`,
		DetailWait:      `div[data-sqe="name"]`,
		CardSelectors: []string{
			".shopee-search-item-result__item",
			`[data-sqe="item"]`,
			`div[class*="shopee-search-item-result"]`,
			`div[class*="product-item"]`,
			`a[href*="/product/"]`,
			`div[class*="item-card"]`,
			`div[data-testid*="product"]`,
		},
		CardRules: []parser.FieldRule{
			{Field: parser.FieldName, Selectors: []string{`[data-sqe="name"]`, "h1, h2, h3", `[class*="product-name"]`, `[class*="item-name"]`, `[class*="title"]`}, MinLen: 4},
			{Field: parser.FieldPrice, Selectors: []string{".currency-value", `[class*="price"]`}, Lowest: true},
			{Field: parser.FieldRating, Selectors: []string{".rating__rating", ".shopee-rating-stars__light-val", `[class*="rating"]`}, Parse: parser.MatchFirst(shopeeRating)},
			{Field: parser.FieldReviewCount, Selectors: []string{""}, Parse: parser.MatchFirst(shopeeReviews)},
			{Field: parser.FieldSold, Selectors: []string{`[class*="sold"]`, ""}, Parse: parser.MatchFirst(shopeeSold)},
			{Field: parser.FieldImage, Selectors: []string{"img"}, Attrs: []string{"src", "data-src"}, Parse: parser.Contains("shopee", "susercontent")},
			{Field: parser.FieldLink, Selectors: []string{"", `a[href*="/product/"]`, `a[href*="-i."]`, "a"}, Attrs: []string{"href"}},
		},
		Detail: parser.DetailSpec{
			Fields: []parser.FieldRule{
				{Field: parser.FieldName, Selectors: []string{`div[data-sqe="name"]`, "h1"}},
				{Field: parser.FieldPrice, Selectors: []string{`div[data-sqe="price"]`, ".pmmxKx", `[class*="price"]`}, Lowest: true},
				{Field: parser.FieldRating, Selectors: []string{`[data-sqe="rating"]`}},
				{Field: parser.FieldReviewCount, Selectors: []string{`[data-sqe="review-count"]`, ".review-count"}},
				{Field: parser.FieldShop, Selectors: []string{`a[data-sqe="shop-name"]`, ".shop-name", `[class*="shop-name"]`, `a[href*="/shop/"]`}},
				{Field: parser.FieldSold, Selectors: []string{`[data-sqe="sold"]`, ".product-sold", `[class*="sold"]`}},
			},
			Breadcrumbs: []string{`a[data-sqe="breadcrumb"]`, ".breadcrumb__item-text", `nav[aria-label="breadcrumb"] a`},
			Colors:      []string{`button[aria-label*="color"]`, `button[aria-label*="Colour"]`},
			Sizes:       []string{`button[aria-label*="size"]`, `button[aria-label*="Size"]`},
			About:       []string{".product-briefing__content", ".N19H5"},
			AboutMinLen: 15,
			Images:      []string{`img[data-sqe="image"]`, ".product-briefing__images img", `[class*="product-image"] img`},
		},
		Categories: parser.CategorySpec{
			Selectors: []string{
				`a[href*="search?category"]`,
				`a[href*="/category/"]`,
				`a[data-sqe="category"]`,
				".home-category-list a",
				`nav a[href*="category"]`,
				`[class*="category"] a`,
			},
			BadWords:       []string{"help", "seller", "sign", "login", "cart", "register", "download"},
			MinLen:         2,
			MaxLen:         50,
			FirstMatchOnly: true,
			NavFallback:    []string{"category", "search"},
		},
		ProductPattern: re(`/product/\d+/\d+|-i\.\d+\.\d+`),
		PriceDivisor:   100000,
		ImageBase:      imageBaseFor(base),
		WarmUp:         true,
		Reviews:        true,
		Rules:          shopeeRules(base),
		loginRel:       shopeeLoginPath,
		searchURL:      func(base, term string) string {
			return base + "/search?keyword=" + url.PathEscape(term)
		},
	}
}
