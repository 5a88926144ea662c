package scraper

import (
	"context"

	"github.com/maltedev/catalog-crawler/internal/models"
	"github.com/maltedev/catalog-crawler/internal/parser"
)

// ScrapeCategories reads the category navigation of the site's landing page.
func (s *Scraper) ScrapeCategories(ctx context.Context) ([]models.Category, error) {
	s.warmUp(ctx)

	page, err := s.load(ctx, s.site.BaseURL, "")
	if err != nil {
		return nil, err
	}

	cats, err := parser.ExtractCategories(page.Content, s.site.BaseURL, s.site.Categories)
	if err != nil {
		return nil, err
	}
	s.logger.Info("categories discovered", "count", len(cats))
	return cats, nil
}
