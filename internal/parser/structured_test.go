package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredStrategyHydrationState(t *testing.T) {
	html := `<html><head><script>
		window.__APP_INITIAL_STATE__ = {"search":{"items":[
			{"item_basic":{"name":"Silicone Phone Case","price":1290000,"item_rating":{"rating_star":4.7},
			 "cmt_count":321,"image":"sg-11134201-abc","itemid":222,"shopid":111,"historical_sold":1500}}
		]}};
	</script></head><body></body></html>`

	s := &StructuredStrategy{
		BaseURL:      "https://shopee.sg",
		Currency:     "S$",
		PriceDivisor: 100000,
		ImageBase:    "https://down-sg.img.susercontent.com/file",
	}

	products, err := s.Extract(context.Background(), Input{URL: "https://shopee.sg/search?keyword=phone%20case", Content: html})

	require.NoError(t, err)
	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "Silicone Phone Case", p.Name)
	assert.Equal(t, "S$12.90", p.Price)
	require.NotNil(t, p.PriceNumeric)
	assert.InDelta(t, 12.9, *p.PriceNumeric, 0.0001)
	require.NotNil(t, p.Rating)
	assert.InDelta(t, 4.7, *p.Rating, 0.0001)
	assert.Equal(t, "321", p.ReviewCount)
	assert.Equal(t, "https://shopee.sg/product/111/222", p.DetailURL)
	assert.Equal(t, "https://down-sg.img.susercontent.com/file/sg-11134201-abc", p.ImageURL)
	assert.Equal(t, "1500", p.SoldCount)
}

func TestStructuredStrategyNextData(t *testing.T) {
	html := `<script id="__NEXT_DATA__" type="application/json">
		{"props":{"pageProps":{"searchResult":{"itemStacks":[{"items":[
			{"name":"Cordless Drill","price":49.97,"canonicalUrl":"/ip/Cordless-Drill/123","image":"https://i5.walmartimages.com/drill.jpg"},
			{"name":"Drill Bits","price":9.5,"canonicalUrl":"/ip/Drill-Bits/456"}
		]}]}}}}
	</script>`

	s := &StructuredStrategy{BaseURL: "https://www.walmart.com", Currency: "$"}

	products, err := s.Extract(context.Background(), Input{Content: html})

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Cordless Drill", products[0].Name)
	assert.Equal(t, "$49.97", products[0].Price)
	assert.Equal(t, "https://www.walmart.com/ip/Cordless-Drill/123", products[0].DetailURL)
	assert.Equal(t, "https://www.walmart.com/ip/Drill-Bits/456", products[1].DetailURL)
}

func TestStructuredStrategyLDItemListInGraph(t *testing.T) {
	html := `<script type="application/ld+json">
		{"@context":"https://schema.org","@graph":[
			{"@type":"WebPage","name":"Results"},
			{"@type":"ItemList","itemListElement":[
				{"@type":"ListItem","position":1,"item":{"@type":"Product","name":"Desk Lamp","url":"https://www.ebay.com/itm/1",
					"offers":{"@type":"Offer","price":"25.00","priceCurrency":"USD"},
					"aggregateRating":{"ratingValue":4.5,"reviewCount":88}}},
				{"@type":"ListItem","position":2,"item":{"@type":"Product","name":"Desk Lamp","url":"https://www.ebay.com/itm/1"}}
			]}
		]}
	</script>`

	s := &StructuredStrategy{Currency: "$"}

	products, err := s.Extract(context.Background(), Input{URL: "https://www.ebay.com/sch/i.html?_nkw=lamp", Content: html})

	require.NoError(t, err)
	require.Len(t, products, 1, "duplicate keys collapse")
	p := products[0]
	assert.Equal(t, "$25.00", p.Price)
	require.NotNil(t, p.Rating)
	assert.InDelta(t, 4.5, *p.Rating, 0.0001)
	assert.Equal(t, "88", p.ReviewCount)
}

func TestStructuredStrategyIgnoresPagesWithoutState(t *testing.T) {
	html := `<html><script>var x = {"tracking": true};</script><script type="application/json">not json</script></html>`

	products, err := (&StructuredStrategy{}).Extract(context.Background(), Input{Content: html})

	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestFindItemsDepthLimit(t *testing.T) {
	deep := map[string]interface{}{"items": []interface{}{map[string]interface{}{"name": "Deep"}}}
	for i := 0; i < maxStructuredDepth+2; i++ {
		deep = map[string]interface{}{"level": deep}
	}

	assert.Empty(t, findItems(deep, 0))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "12.90", formatAmount(12.9))
	assert.Equal(t, "1,299.00", formatAmount(1299))
	assert.Equal(t, "1,234,567.50", formatAmount(1234567.5))
}
