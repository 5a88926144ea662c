package models

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterDropsNamelessRecords(t *testing.T) {
	in := []Product{
		{Name: "Wireless Mouse"},
		{Name: "   "},
		{Price: "$5.00"},
		{Name: "USB Hub"},
	}

	out := Filter(in)

	require.Len(t, out, 2)
	assert.Equal(t, "Wireless Mouse", out[0].Name)
	assert.Equal(t, "USB Hub", out[1].Name)
}

func TestMergeDetailWins(t *testing.T) {
	base := NewProduct("Mouse")
	base.SetPrice("$10.00", 10, "$")
	base.DetailURL = "https://www.example.com/dp/1"

	detail := &Product{Name: "Wireless Mouse M185", CategoryPath: "Electronics > Mice"}
	detail.SetPrice("$12.50", 12.5, "$")

	base.Merge(detail)

	assert.Equal(t, "Wireless Mouse M185", base.Name)
	assert.Equal(t, "$12.50", base.Price)
	require.NotNil(t, base.PriceNumeric)
	assert.InDelta(t, 12.5, *base.PriceNumeric, 0.001)
	assert.Equal(t, "https://www.example.com/dp/1", base.DetailURL)
	assert.Equal(t, "Electronics > Mice", base.CategoryPath)
}

func TestDedupCategories(t *testing.T) {
	cats := []Category{
		{Name: "Electronics", URL: "/a"},
		{Name: "Home", URL: "/b"},
		{Name: "Electronics", URL: "/c"},
		{Name: "Toys", URL: "/d"},
	}

	tests := []struct {
		name     string
		limit    int
		expected []string
	}{
		{name: "no limit", limit: 0, expected: []string{"Electronics", "Home", "Toys"}},
		{name: "limit two", limit: 2, expected: []string{"Electronics", "Home"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := DedupCategories(cats, tt.limit)
			var names []string
			for _, c := range out {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.expected, names)
			assert.Equal(t, "/a", out[0].URL)
		})
	}
}

func TestSummarize(t *testing.T) {
	a := Product{Name: "a", Price: "$1", DetailURL: "u", Description: "d"}
	a.SetRating(4.5)
	b := Product{Name: "b", Price: "$2"}

	s := Summarize("amazon", "mouse", []Product{a, b})

	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 2, s.WithPrice)
	assert.Equal(t, 1, s.WithRating)
	assert.InDelta(t, 0.5, s.URLRatio(), 0.0001)
	assert.InDelta(t, 0.5, s.DescriptionRatio(), 0.0001)

	var buf bytes.Buffer
	WriteSummary(&buf, []TermSummary{s, {Site: "amazon", Term: "empty", Skipped: true, Error: "blocked"}})
	assert.Contains(t, buf.String(), "price:       2/2 (100.0%)")
	assert.Contains(t, buf.String(), "(skipped: blocked)")
}

func TestSummaryRatioEmpty(t *testing.T) {
	s := Summarize("ebay", "none", nil)
	assert.Zero(t, s.PriceRatio())
}
