// Package scraper runs search terms, detail pages, reviews and category discovery
// for one site over one backend.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/catalog-crawler/internal/metrics"
	"github.com/maltedev/catalog-crawler/internal/navigation"
	"github.com/maltedev/catalog-crawler/internal/parser"
	"github.com/maltedev/catalog-crawler/internal/ratelimit"
	"github.com/maltedev/catalog-crawler/internal/sites"
)

var (
	// ErrBlocked marks a page the site refused to serve: a verification wall that
	// could not be cleared or a blocking status code.
	ErrBlocked = errors.New("blocked by site anti-bot")

	ErrNoReviewIDs = errors.New("shop and item ids not found")
)

// Page is a loaded document that passed the verification gate.
type Page struct {
	URL      string
	FinalURL string
	Content  string
}

// Backend acquires pages. Implementations are used by one goroutine at a time.
type Backend interface {
	Name() string
	Load(ctx context.Context, url, waitSelector string) (*Page, error)
	// Get performs a plain request in the backend's session, cookies included.
	Get(ctx context.Context, url string, headers map[string]string) ([]byte, int, error)
	Close() error
}

// Deduplicator remembers detail URLs across runs.
type Deduplicator interface {
	Seen(ctx context.Context, url string) (bool, error)
	Forget(ctx context.Context, url string) error
}

type Options struct {
	Site     sites.Site
	Backend  Backend
	Pipeline *parser.Pipeline
	Limiter  ratelimit.Limiter
	Dedup    Deduplicator

	// ResultLimit caps records per term. Zero keeps everything.
	ResultLimit int
	Details     bool
	MaxReviews  int
	Logger      *slog.Logger
}

type Scraper struct {
	site     sites.Site
	backend  Backend
	pipeline *parser.Pipeline
	limiter  ratelimit.Limiter
	dedup    Deduplicator
	opts     Options
	logger   *slog.Logger
	warmed   bool
}

func New(opts Options) *Scraper {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = opts.Site.Pipeline(nil, "", opts.ResultLimit, logger)
	}
	return &Scraper{
		site:     opts.Site,
		backend:  opts.Backend,
		pipeline: pipeline,
		limiter:  opts.Limiter,
		dedup:    opts.Dedup,
		opts:     opts,
		logger:   logger.With("component", "scraper", "site", opts.Site.Name, "backend", opts.Backend.Name()),
	}
}

// load paces, loads and records the outcome of one page visit.
func (s *Scraper) load(ctx context.Context, url, wait string) (*Page, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	page, err := s.backend.Load(ctx, url, wait)
	metrics.PageLoadDuration.WithLabelValues(s.site.Name, s.backend.Name()).Observe(time.Since(start).Seconds())

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrBlocked):
		result = "blocked"
	case errors.Is(err, navigation.ErrEmptyContent):
		result = "empty"
	case ctx.Err() != nil:
		result = "cancelled"
	default:
		result = "error"
	}
	metrics.PageLoads.WithLabelValues(s.site.Name, s.backend.Name(), result).Inc()

	if s.limiter != nil {
		if err != nil && result != "cancelled" {
			s.limiter.RecordError()
		} else if err == nil {
			s.limiter.RecordSuccess()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", url, err)
	}
	return page, nil
}

// warmUp visits the home page once so the session carries the site's cookies
// before the first search. Failures are advisory.
func (s *Scraper) warmUp(ctx context.Context) {
	if !s.site.WarmUp || s.warmed {
		return
	}
	s.warmed = true
	if _, err := s.load(ctx, s.site.BaseURL, ""); err != nil {
		s.logger.Warn("warm-up visit failed", "error", err)
	}
}
