package scraper

import (
	"context"
	"fmt"

	"github.com/maltedev/catalog-crawler/internal/metrics"
	"github.com/maltedev/catalog-crawler/internal/models"
	"github.com/maltedev/catalog-crawler/internal/parser"
)

// ScrapeDetail loads a product page and extracts the full record. The record
// keeps url as its detail URL so it merges onto the search record's key.
func (s *Scraper) ScrapeDetail(ctx context.Context, url string) (*models.Product, error) {
	page, err := s.load(ctx, url, s.site.DetailWait)
	if err != nil {
		return nil, err
	}

	detail, err := parser.ExtractDetail(page.Content, url, s.site.Detail, s.site.DefaultCurrency)
	if err != nil {
		return nil, fmt.Errorf("extract detail %s: %w", url, err)
	}
	detail.Site = s.site.Name
	detail.Source = "detail"
	return detail, nil
}

// FetchReviews pulls up to max reviews for a product through the ratings API,
// falling back to the rendered ratings page when the API yields nothing.
func (s *Scraper) FetchReviews(ctx context.Context, url string, max int) ([]models.Review, error) {
	if max <= 0 {
		return nil, nil
	}

	shopID, itemID, ok := parser.ReviewIDs(url, "")
	if !ok {
		page, err := s.load(ctx, url, s.site.DetailWait)
		if err != nil {
			return nil, err
		}
		shopID, itemID, ok = parser.ReviewIDs(page.FinalURL, page.Content)
		if !ok {
			return nil, fmt.Errorf("%s: %w", url, ErrNoReviewIDs)
		}
	}

	reviews, err := s.reviewsFromAPI(ctx, url, shopID, itemID, max)
	if len(reviews) > 0 {
		if err != nil {
			s.logger.Warn("ratings api stopped early, keeping partial reviews", "url", url, "reviews", len(reviews), "error", err)
		}
		metrics.ReviewsFetched.WithLabelValues(s.site.Name, "api").Add(float64(len(reviews)))
		return reviews, nil
	}
	if err != nil {
		s.logger.Warn("ratings api failed, using ratings page", "url", url, "error", err)
	}

	page, err := s.load(ctx, parser.ReviewsPageURL(s.site.BaseURL, shopID, itemID), "")
	if err != nil {
		return nil, err
	}
	htmlReviews, err := parser.ExtractReviewsHTML(page.Content, max)
	if err != nil {
		return nil, err
	}
	metrics.ReviewsFetched.WithLabelValues(s.site.Name, "html").Add(float64(len(htmlReviews)))
	return htmlReviews, nil
}

func (s *Scraper) reviewsFromAPI(ctx context.Context, referer, shopID, itemID string, max int) ([]models.Review, error) {
	headers := map[string]string{
		"Referer":          referer,
		"Accept":           "application/json",
		"X-Requested-With": "XMLHttpRequest",
	}

	var all []models.Review
	offset := 0
	for len(all) < max {
		limit := min(max-len(all), parser.MaxReviewPage)

		body, _, err := s.backend.Get(ctx, parser.ReviewsURL(s.site.BaseURL, shopID, itemID, offset, limit), headers)
		if err != nil {
			return all, err
		}
		page, err := parser.ParseRatingsResponse(body, limit)
		if err != nil {
			return all, err
		}

		all = append(all, page...)
		if len(page) < limit {
			break
		}
		offset += len(page)
	}
	return all, nil
}
