package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/maltedev/catalog-crawler/internal/browser"
	"github.com/maltedev/catalog-crawler/internal/config"
	"github.com/maltedev/catalog-crawler/internal/fetch"
	"github.com/maltedev/catalog-crawler/internal/humanize"
	"github.com/maltedev/catalog-crawler/internal/metrics"
	"github.com/maltedev/catalog-crawler/internal/models"
	"github.com/maltedev/catalog-crawler/internal/parser"
	"github.com/maltedev/catalog-crawler/internal/ratelimit"
	"github.com/maltedev/catalog-crawler/internal/scraper"
	"github.com/maltedev/catalog-crawler/internal/sites"
	"github.com/maltedev/catalog-crawler/internal/verification"
)

// crawlSite runs one independent session for site: its own backend, cookie
// file and request log. Errors are returned in the result, never shared.
func (e *crawlEnv) crawlSite(ctx context.Context, name string) (res siteResult) {
	cfg := e.cfg
	log := e.logger.With("site", name)

	e.runs.StartSite(e.runID, name, cfg.Crawler.Backend)
	defer func() {
		e.runs.FinishSite(e.runID, name, res.out, res.terms, res.err)
	}()

	site, err := e.configureSite(name)
	if err != nil {
		res.err = err
		return res
	}

	backend, err := e.openBackend(ctx, site, log)
	if err != nil {
		res.err = err
		return res
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Warn("failed to close backend", "error", err)
		}
	}()

	var mirror parser.Fetcher
	if e.flags.renderProxy {
		m, err := fetch.NewMirror(fetch.Options{ProxyURL: cfg.Crawler.Proxy, Logger: log})
		if err != nil {
			res.err = err
			return res
		}
		mirror = m
	}

	opts := scraper.Options{
		Site:        site,
		Backend:     backend,
		Pipeline:    site.Pipeline(mirror, cfg.Crawler.MirrorURL, cfg.Crawler.ResultLimit, log),
		Limiter:     ratelimit.NewAdaptiveLimiter(cfg.Crawler.RateLimitMin, cfg.Crawler.RateLimitMax),
		ResultLimit: cfg.Crawler.ResultLimit,
		Details:     e.flags.details,
		MaxReviews:  cfg.Crawler.MaxReviews,
		Logger:      log,
	}
	if e.dedup != nil {
		opts.Dedup = e.dedup
	}
	s := scraper.New(opts)

	products, terms := s.ScrapeProducts(ctx, e.flags.searches)
	res.terms = terms

	categories, err := s.ScrapeCategories(ctx)
	if err != nil {
		log.Warn("category discovery failed", "error", err)
	}

	res.out = &models.Output{
		RunID:       e.runID,
		Site:        site.Name,
		Backend:     backend.Name(),
		SearchTerms: e.flags.searches,
		Products:    products,
		Categories:  models.DedupCategories(categories, 0),
	}

	path, err := e.store.Save(res.out)
	if err != nil {
		res.err = err
		return res
	}
	res.path = path
	log.Info("output written", "path", path, "products", len(products), "categories", len(res.out.Categories))

	e.deliver(ctx, res.out, log)
	return res
}

// deliver hands the output to the configured sink and stream. Failures are
// logged; the JSON file is already on disk.
func (e *crawlEnv) deliver(ctx context.Context, out *models.Output, log *slog.Logger) {
	if e.writer != nil {
		start := time.Now()
		err := e.writer.Write(ctx, out)
		metrics.SinkWriteDuration.WithLabelValues(e.flags.sink).Observe(time.Since(start).Seconds())
		if err != nil {
			log.Error("sink write failed", "sink", e.flags.sink, "error", err)
		}
	}
	if e.publisher != nil {
		n, err := e.publisher.PublishOutput(ctx, out)
		if err != nil {
			log.Error("publish failed", "published", n, "error", err)
		} else {
			log.Info("records published", "events", n)
		}
	}
}

func (e *crawlEnv) configureSite(name string) (sites.Site, error) {
	site, err := sites.Lookup(name)
	if err != nil {
		return sites.Site{}, err
	}
	settings := config.SiteSettings(e.overrides, site.Name)
	base := settings.BaseURL
	if e.flags.baseURL != "" {
		base = e.flags.baseURL
	}
	return site.WithBaseURL(base).WithCurrency(settings.Currency), nil
}

func (e *crawlEnv) openBackend(ctx context.Context, site sites.Site, log *slog.Logger) (scraper.Backend, error) {
	cfg := e.cfg
	settings := config.SiteSettings(e.overrides, site.Name)

	acceptLanguage := settings.AcceptLanguage
	if acceptLanguage == "" {
		acceptLanguage = browser.ProfileFor(site.BaseURL).AcceptLanguage
	}

	if cfg.Crawler.Backend == "static" {
		client, err := fetch.New(fetch.Options{
			Timeout:  cfg.Crawler.FetchTimeout,
			ProxyURL: cfg.Crawler.Proxy,
			Headers:  map[string]string{"Accept-Language": acceptLanguage},
			Logger:   log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create fetch client: %w", err)
		}
		return scraper.NewStaticBackend(client, site.Rules, log), nil
	}

	bopts := browser.DefaultOptions()
	bopts.Headless = cfg.Browser.Headless
	bopts.Timeout = cfg.Browser.Timeout
	bopts.ViewportWidth = cfg.Browser.ViewportWidth
	bopts.ViewportHeight = cfg.Browser.ViewportHeight
	if len(cfg.Browser.UserAgents) > 0 {
		bopts.UserAgents = cfg.Browser.UserAgents
	}
	bopts.ProxyServer = cfg.Crawler.Proxy
	bopts.BaseURL = site.BaseURL
	bopts.CookiesFile = cookiesPath(cfg, e.flags, site.Name)
	bopts.RequestLogFile = requestLogPath(cfg, site.Name)
	if settings.AcceptLanguage != "" {
		bopts.ExtraHeaders["Accept-Language"] = settings.AcceptLanguage
	}
	bopts.Logger = log

	session, err := browser.Open(ctx, bopts)
	if err != nil {
		return nil, err
	}

	human := humanize.New(humanize.DefaultConfig(), log)
	vopts := verification.Options{
		Credentials: verification.Credentials{Email: settings.Email, Password: settings.Password},
		Manual:      cfg.Browser.ManualVerification,
		Headless:    cfg.Browser.Headless,
		Prompter:    verification.TerminalPrompter{In: os.Stdin, Out: os.Stderr},
	}
	return scraper.NewBrowserBackend(session, site, vopts, human, log), nil
}
