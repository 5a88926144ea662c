package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCurrency(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{"RM 12.00", "RM"},
		{"NT$350", "NT$"},
		{"S$4.50", "S$"},
		{"฿99", "฿"},
		{"$19.99", "$"},
		{"19.99", "S$"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectCurrency(tt.text, "S$"))
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
		ok       bool
	}{
		{"plain", "$19.99", 19.99, true},
		{"thousands", "$1,299.99", 1299.99, true},
		{"ringgit", "RM 45", 45, true},
		{"range takes first", "S$10.50 - S$12.00", 10.5, true},
		{"zero", "$0.00", 0, false},
		{"no number", "see price in cart", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := ParsePrice(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, v, 0.0001)
		})
	}
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "S$19.99", FormatPrice("19.99", "S$"))
	assert.Equal(t, "$19.99", FormatPrice(" $19.99 ", "S$"))
	assert.Equal(t, "19.99", FormatPrice("19.99", ""))
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		text     string
		expected float64
		ok       bool
	}{
		{"4.3 out of 5 stars", 4.3, true},
		{"Rated 4 out of 5", 4, true},
		{"4.8", 4.8, true},
		{"7", 5, true},
		{"no rating yet", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			v, ok := ParseRating(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, v, 0.0001)
		})
	}
}

func TestParseReviewCount(t *testing.T) {
	raw, n, ok := ParseReviewCount("(1,234)")
	assert.True(t, ok)
	assert.Equal(t, "1,234", raw)
	assert.Equal(t, 1234, n)

	raw, n, ok = ParseReviewCount("12 ratings")
	assert.True(t, ok)
	assert.Equal(t, "12", raw)
	assert.Equal(t, 12, n)

	_, _, ok = ParseReviewCount("no reviews")
	assert.False(t, ok)
}

func TestParseSold(t *testing.T) {
	v, ok := ParseSold("1.2k+ sold")
	assert.True(t, ok)
	assert.Equal(t, "1.2k+", v)

	_, ok = ParseSold("free shipping")
	assert.False(t, ok)
}

func TestResolveURL(t *testing.T) {
	base := "https://www.amazon.com/s?k=mouse"
	tests := []struct {
		href     string
		expected string
	}{
		{"/dp/B000123", "https://www.amazon.com/dp/B000123"},
		{"https://www.ebay.com/itm/1", "https://www.ebay.com/itm/1"},
		{"//images.example.com/a.jpg", "https://images.example.com/a.jpg"},
		{"#top", ""},
		{"javascript:void(0)", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveURL(base, tt.href))
		})
	}
}

func TestOrigin(t *testing.T) {
	assert.Equal(t, "https://shopee.sg", Origin("https://shopee.sg/search?keyword=case"))
	assert.Equal(t, "shopee.sg", Origin("shopee.sg/"))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Wireless Mouse", CleanText("  Wireless\n\t Mouse "))
}
