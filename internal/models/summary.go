package models

import (
	"fmt"
	"io"
)

// TermSummary is the field-completeness report for one search term.
type TermSummary struct {
	Site            string `json:"site"`
	Term            string `json:"term"`
	Total           int    `json:"total"`
	WithPrice       int    `json:"with_price"`
	WithRating      int    `json:"with_rating"`
	WithURL         int    `json:"with_url"`
	WithDescription int    `json:"with_description"`
	Skipped         bool   `json:"skipped"`
	Error           string `json:"error,omitempty"`
}

func Summarize(site, term string, products []Product) TermSummary {
	s := TermSummary{Site: site, Term: term, Total: len(products)}
	for _, p := range products {
		if p.Price != "" {
			s.WithPrice++
		}
		if p.Rating != nil {
			s.WithRating++
		}
		if p.DetailURL != "" {
			s.WithURL++
		}
		if p.Description != "" {
			s.WithDescription++
		}
	}
	return s
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func (s TermSummary) PriceRatio() float64       { return ratio(s.WithPrice, s.Total) }
func (s TermSummary) RatingRatio() float64      { return ratio(s.WithRating, s.Total) }
func (s TermSummary) URLRatio() float64         { return ratio(s.WithURL, s.Total) }
func (s TermSummary) DescriptionRatio() float64 { return ratio(s.WithDescription, s.Total) }

// WriteSummary prints one block per term.
func WriteSummary(w io.Writer, summaries []TermSummary) {
	for _, s := range summaries {
		fmt.Fprintf(w, "[%s] %q: %d products", s.Site, s.Term, s.Total)
		if s.Skipped {
			fmt.Fprintf(w, " (skipped: %s)", s.Error)
		}
		fmt.Fprintln(w)
		if s.Total == 0 {
			continue
		}
		fmt.Fprintf(w, "  price:       %d/%d (%.1f%%)\n", s.WithPrice, s.Total, s.PriceRatio()*100)
		fmt.Fprintf(w, "  rating:      %d/%d (%.1f%%)\n", s.WithRating, s.Total, s.RatingRatio()*100)
		fmt.Fprintf(w, "  url:         %d/%d (%.1f%%)\n", s.WithURL, s.Total, s.URLRatio()*100)
		fmt.Fprintf(w, "  description: %d/%d (%.1f%%)\n", s.WithDescription, s.Total, s.DescriptionRatio()*100)
	}
}
