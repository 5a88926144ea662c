package sites

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/catalog-crawler/internal/parser"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"amazon", "ebay", "walmart", "shopee", " Shopee "} {
		s, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, s.BaseURL)
		assert.NotEmpty(t, s.CardSelectors)
		assert.NotEmpty(t, s.CardRules)
		assert.NotNil(t, s.ProductPattern)
	}

	_, err := Lookup("etsy")
	assert.ErrorIs(t, err, ErrUnknownSite)
	assert.Equal(t, []string{"amazon", "ebay", "shopee", "walmart"}, Names())
}

func TestSearchURL(t *testing.T) {
	tests := []struct {
		site     func() Site
		term     string
		expected string
	}{
		{Amazon, "wireless mouse", "https://www.amazon.com/s?k=wireless+mouse"},
		{Ebay, "desk lamp", "https://www.ebay.com/sch/i.html?_nkw=desk+lamp"},
		{Walmart, "cordless drill", "https://www.walmart.com/search?q=cordless+drill"},
		{Shopee, "phone case", "https://shopee.sg/search?keyword=phone%20case"},
	}

	for _, tt := range tests {
		s := tt.site()
		t.Run(s.Name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.SearchURL(tt.term))
		})
	}
}

func TestWithBaseURLUpdatesDerivedValues(t *testing.T) {
	s := Shopee().WithBaseURL("https://shopee.tw/")

	assert.Equal(t, "https://shopee.tw", s.BaseURL)
	assert.Equal(t, "https://shopee.tw/buyer/login", s.Rules.LoginURL)
	assert.Equal(t, "https://cf.shopee.tw/file", s.ImageBase)
	assert.Equal(t, "shopee.tw", s.Host())
	assert.Equal(t, "https://shopee.tw/search?keyword=x", s.SearchURL("x"))

	// the registry hands out fresh copies
	assert.Equal(t, "https://shopee.sg/buyer/login", Shopee().Rules.LoginURL)

	a := Amazon().WithBaseURL("")
	assert.Equal(t, "https://www.amazon.com", a.BaseURL)
	assert.Empty(t, a.Rules.LoginURL)
}

func TestAmazonPipelineWirelessMouse(t *testing.T) {
	html := `<html><body><div class="s-main-slot">
		<div data-component-type="s-search-result" data-asin="B0MOUSE">
			<div><img class="s-image" src="https://m.media-amazon.com/images/I/mouse._AC_UL320_.jpg"></div>
			<h2><a class="a-link-normal" href="/Wireless-Mouse/dp/B0MOUSE/ref=sr_1_1"><span>Wireless Mouse</span></a></h2>
			<div><span class="a-icon-alt">4.3 out of 5 stars</span> <span aria-label="2,311 ratings">(2,311)</span></div>
			<span class="a-price"><span class="a-offscreen">$19.99</span><span aria-hidden="true">$19<sup>99</sup></span></span>
		</div>
	</div></body></html>`

	s := Amazon()
	out, err := s.Pipeline(nil, "", 10, nil).Run(context.Background(), parser.Input{
		URL:        s.SearchURL("wireless mouse"),
		Content:    html,
		SearchTerm: "wireless mouse",
	})

	require.NoError(t, err)
	assert.Equal(t, "selector", out.Strategy)
	require.Len(t, out.Products, 1)
	p := out.Products[0]
	assert.Equal(t, "Wireless Mouse", p.Name)
	require.NotNil(t, p.PriceNumeric)
	assert.InDelta(t, 19.99, *p.PriceNumeric, 0.0001)
	assert.Equal(t, "$19.99", p.Price)
	require.NotNil(t, p.Rating)
	assert.InDelta(t, 4.3, *p.Rating, 0.0001)
	assert.Equal(t, "2,311", p.ReviewCount)
	assert.Equal(t, "https://www.amazon.com/Wireless-Mouse/dp/B0MOUSE/ref=sr_1_1", p.DetailURL)
	assert.Equal(t, "wireless mouse", p.SearchTerm)
}

func TestShopeeSelectorCards(t *testing.T) {
	html := `<ul>
		<li class="shopee-search-item-result__item" data-sqe="item">
			<a href="/Silicone-Case-i.111.222">
				<img src="https://down-sg.img.susercontent.com/file/abc">
				<div data-sqe="name">Silicone Phone Case</div>
				<span class="item-price">S$12.90</span><span class="item-price">S$8.50</span>
				<div class="item-rating">4.8</div>
				<div class="item-sold">1.2k sold</div>
			</a>
		</li>
	</ul>`

	s := Shopee()
	out, err := s.Pipeline(nil, "", 10, nil).Run(context.Background(), parser.Input{URL: s.SearchURL("case"), Content: html})

	require.NoError(t, err)
	require.Len(t, out.Products, 1)
	p := out.Products[0]
	assert.Equal(t, "Silicone Phone Case", p.Name)
	assert.Equal(t, "S$8.50", p.Price)
	assert.Equal(t, "S$", p.Currency)
	require.NotNil(t, p.Rating)
	assert.InDelta(t, 4.8, *p.Rating, 0.0001)
	assert.Equal(t, "1.2k", p.SoldCount)
	assert.Equal(t, "https://down-sg.img.susercontent.com/file/abc", p.ImageURL)
	assert.Equal(t, "https://shopee.sg/Silicone-Case-i.111.222", p.DetailURL)
}

func TestEbayRejectsPlaceholderCard(t *testing.T) {
	html := `<ul class="srp-results">
		<li class="s-item"><div class="s-item__title">Shop on eBay</div><span class="s-item__price">$20.00</span></li>
		<li class="s-item">
			<a class="s-item__link" href="https://www.ebay.com/itm/1234?hash=x"><h3 class="s-item__title">Brass Desk Lamp</h3></a>
			<span class="s-item__price">$35.00</span>
			<div class="x-star-rating"><span class="clipped">4.5 out of 5 stars.</span></div>
			<span class="s-item__reviews-count"><span>(12)</span></span>
		</li>
	</ul>`

	s := Ebay()
	out, err := s.Pipeline(nil, "", 10, nil).Run(context.Background(), parser.Input{URL: s.SearchURL("lamp"), Content: html})

	require.NoError(t, err)
	require.Len(t, out.Products, 1)
	p := out.Products[0]
	assert.Equal(t, "Brass Desk Lamp", p.Name)
	assert.Equal(t, "$35.00", p.Price)
	require.NotNil(t, p.ReviewCountNumeric)
	assert.Equal(t, 12, *p.ReviewCountNumeric)
	assert.Equal(t, "https://www.ebay.com/itm/1234?hash=x", p.DetailURL)
}

func TestPipelineIncludesRenderProxyOnlyWithFetcher(t *testing.T) {
	s := Walmart()
	assert.Equal(t, []string{"structured", "selector"}, s.Pipeline(nil, "", 0, nil).Strategies())
	assert.Equal(t, []string{"structured", "selector", "render_proxy"}, s.Pipeline(stubFetcher{}, "", 0, nil).Strategies())
}

type stubFetcher struct{}

func (stubFetcher) Fetch(context.Context, string) (string, error) { return "", nil }
