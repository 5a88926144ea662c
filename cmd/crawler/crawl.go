package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/maltedev/catalog-crawler/internal/api"
	"github.com/maltedev/catalog-crawler/internal/config"
	"github.com/maltedev/catalog-crawler/internal/database"
	"github.com/maltedev/catalog-crawler/internal/events"
	"github.com/maltedev/catalog-crawler/internal/models"
	"github.com/maltedev/catalog-crawler/internal/storage"
	"github.com/maltedev/catalog-crawler/pkg/logger"
)

// crawlEnv is everything the site sessions of one run share.
type crawlEnv struct {
	cfg       *config.Config
	flags     crawlFlags
	overrides map[string]config.SiteOverride
	runID     string
	store     *storage.ResultStore
	writer    database.Writer
	publisher *events.Publisher
	dedup     *events.Deduplicator
	runs      *api.Registry
	logger    *slog.Logger
}

type siteResult struct {
	out   *models.Output
	terms []models.TermSummary
	path  string
	err   error
}

func runCrawl(ctx context.Context, f crawlFlags, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cfg, f)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closeLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer closeLog()
	slog.SetDefault(log)

	overrides, err := config.LoadSites(cfg.Crawler.SitesFile)
	if err != nil {
		return err
	}

	names, err := resolveSites(f.site)
	if err != nil {
		return err
	}

	store, err := storage.NewResultStore(cfg.Crawler.OutputDir)
	if err != nil {
		return err
	}

	env := &crawlEnv{
		cfg:       cfg,
		flags:     f,
		overrides: overrides,
		runID:     uuid.New().String(),
		store:     store,
		runs:      api.NewRegistry(),
		logger:    log,
	}
	log = log.With("run_id", env.runID)
	env.logger = log
	log.Info("starting crawl", "sites", names, "backend", cfg.Crawler.Backend, "terms", f.searches, "sink", f.sink)

	var outbox api.OutboxCounter
	switch f.sink {
	case "postgres":
		db, err := database.New(ctx, cfg.PostgresConfig())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		env.writer = database.NewPostgresWriter(db, cfg.Database.OutboxStream, log)
		outbox = database.NewOutboxRepository(db)
	case "mongo":
		w, err := database.NewMongoWriter(ctx, cfg.Mongo.URI, cfg.Mongo.Database, log)
		if err != nil {
			return err
		}
		env.writer = w
	}
	if env.writer != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := env.writer.Close(closeCtx); err != nil {
				log.Warn("failed to close sink", "error", err)
			}
		}()
	}

	if f.publish || f.dedup {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		if f.publish {
			env.publisher = events.NewPublisher(rdb, cfg.Redis.Stream, log)
		}
		if f.dedup {
			env.dedup = events.NewDeduplicator(rdb, cfg.Crawler.DedupTTL)
		}
	}

	if f.metricsAddr != "" {
		srvCtx, stopServer := context.WithCancel(context.Background())
		srv := api.NewServer(listenAddr(f.metricsAddr), api.NewHandlers(env.runs, outbox, log), cfg.Server.ShutdownTimeout, log)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := srv.Run(srvCtx); err != nil {
				log.Error("diagnostics server failed", "error", err)
			}
		}()
		defer func() {
			stopServer()
			<-done
		}()
	}

	results := make([]siteResult, len(names))
	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			results[i] = env.crawlSite(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	var (
		summaries []models.TermSummary
		errs      []error
	)
	for i, r := range results {
		summaries = append(summaries, r.terms...)
		if r.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", names[i], r.err))
			continue
		}
		fmt.Fprintf(stdout, "%s: %d products, %d categories -> %s\n", names[i], len(r.out.Products), len(r.out.Categories), r.path)
	}
	models.WriteSummary(stdout, summaries)

	if len(errs) == len(names) {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		log.Error("site failed", "error", err)
	}
	return nil
}

// applyFlags lets explicit flags win over the environment.
func applyFlags(cfg *config.Config, f crawlFlags) {
	if f.backend != "" {
		cfg.Crawler.Backend = f.backend
	}
	if f.output != "" {
		cfg.Crawler.OutputDir = f.output
	}
	if f.proxy != "" {
		cfg.Crawler.Proxy = f.proxy
	}
	if f.limit >= 0 {
		cfg.Crawler.ResultLimit = f.limit
	}
	if f.reviews > 0 {
		cfg.Crawler.MaxReviews = f.reviews
	}
	if !f.isHeadless() {
		cfg.Browser.Headless = false
	}
	if f.manualVerification {
		cfg.Browser.ManualVerification = true
	}
}

func cookiesPath(cfg *config.Config, f crawlFlags, site string) string {
	if f.cookiesFile != "" {
		return f.cookiesFile
	}
	return filepath.Join(cfg.Browser.CookiesDir, site+"_cookies.json")
}

func requestLogPath(cfg *config.Config, site string) string {
	return filepath.Join(cfg.Browser.RequestLogDir, site+"_requests.json")
}

func listenAddr(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return ":" + addr
}
