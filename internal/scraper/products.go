package scraper

import (
	"context"
	"errors"

	"github.com/maltedev/catalog-crawler/internal/metrics"
	"github.com/maltedev/catalog-crawler/internal/models"
	"github.com/maltedev/catalog-crawler/internal/navigation"
	"github.com/maltedev/catalog-crawler/internal/parser"
)

// ScrapeProducts runs every term in order on the one session. A failed term is
// reported in its summary with no records and the loop moves on.
func (s *Scraper) ScrapeProducts(ctx context.Context, terms []string) ([]models.Product, []models.TermSummary) {
	s.warmUp(ctx)

	var (
		all       []models.Product
		summaries []models.TermSummary
	)

	for _, term := range terms {
		log := s.logger.With("term", term)

		if err := ctx.Err(); err != nil {
			summary := models.Summarize(s.site.Name, term, nil)
			summary.Skipped = true
			summary.Error = err.Error()
			summaries = append(summaries, summary)
			continue
		}

		products, err := s.scrapeTerm(ctx, term)
		summary := models.Summarize(s.site.Name, term, products)
		if err != nil {
			log.Error("term failed", "error", err)
			summary.Skipped = true
			summary.Error = err.Error()
			metrics.TermsProcessed.WithLabelValues(s.site.Name, "failed").Inc()
		} else {
			log.Info("term done", "products", len(products))
			metrics.TermsProcessed.WithLabelValues(s.site.Name, "ok").Inc()
		}

		summaries = append(summaries, summary)
		all = append(all, products...)
	}

	return all, summaries
}

func (s *Scraper) scrapeTerm(ctx context.Context, term string) ([]models.Product, error) {
	url := s.site.SearchURL(term)

	// A blocked or empty page still goes through the pipeline so the
	// render proxy can fetch the mirror copy.
	content := ""
	page, loadErr := s.load(ctx, url, s.site.ResultWait)
	switch {
	case loadErr == nil:
		content = page.Content
	case errors.Is(loadErr, ErrBlocked), errors.Is(loadErr, navigation.ErrEmptyContent):
		s.logger.Warn("direct load failed, trying fallback strategies", "term", term, "url", url, "error", loadErr)
	default:
		return nil, loadErr
	}

	out, err := s.pipeline.Run(ctx, parser.Input{URL: url, Content: content, SearchTerm: term})
	if errors.Is(err, parser.ErrNoRecords) {
		if loadErr != nil {
			return nil, loadErr
		}
		s.logger.Warn("no records on results page", "term", term, "url", page.FinalURL)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	products := out.Products
	if s.opts.ResultLimit > 0 && len(products) > s.opts.ResultLimit {
		products = products[:s.opts.ResultLimit]
	}
	metrics.RecordsExtracted.WithLabelValues(s.site.Name, out.Strategy).Add(float64(len(products)))

	for i := range products {
		p := &products[i]
		p.Site = s.site.Name
		p.SearchTerm = term
		if p.Source == "" {
			p.Source = out.Strategy
		}
		if s.opts.Details {
			s.enrich(ctx, p)
		}
		if p.Description == "" {
			p.Description = parser.Describe(p.Name)
		}
	}

	return models.Filter(products), nil
}

// enrich merges the detail page and reviews into p. Failures leave p as it was.
func (s *Scraper) enrich(ctx context.Context, p *models.Product) {
	if p.DetailURL == "" || ctx.Err() != nil {
		return
	}
	url := p.DetailURL
	log := s.logger.With("url", url)

	if s.dedup != nil {
		seen, err := s.dedup.Seen(ctx, url)
		if err != nil {
			log.Warn("dedup check failed", "error", err)
		} else if seen {
			log.Debug("detail already fetched, skipping")
			return
		}
	}

	detail, err := s.ScrapeDetail(ctx, url)
	if err != nil {
		log.Warn("detail fetch failed", "error", err)
		if s.dedup != nil {
			if ferr := s.dedup.Forget(ctx, url); ferr != nil {
				log.Warn("dedup forget failed", "error", ferr)
			}
		}
		return
	}
	p.Merge(detail)

	if s.opts.MaxReviews > 0 && s.site.Reviews {
		reviews, err := s.FetchReviews(ctx, url, s.opts.MaxReviews)
		if err != nil {
			log.Warn("reviews fetch failed", "error", err)
			return
		}
		p.Reviews = reviews
	}
}
