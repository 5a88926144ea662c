package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/catalog-crawler/internal/browser"
	"github.com/maltedev/catalog-crawler/internal/fetch"
	"github.com/maltedev/catalog-crawler/internal/humanize"
	"github.com/maltedev/catalog-crawler/internal/metrics"
	"github.com/maltedev/catalog-crawler/internal/navigation"
	"github.com/maltedev/catalog-crawler/internal/sites"
	"github.com/maltedev/catalog-crawler/internal/verification"
)

// BrowserBackend loads pages in a stealth browser session and runs every
// page through the login and verification machine.
type BrowserBackend struct {
	session *browser.Session
	nav     *navigation.Controller
	machine *verification.Machine
	logger  *slog.Logger
}

func NewBrowserBackend(session *browser.Session, site sites.Site, vopts verification.Options, human *humanize.Humanizer, logger *slog.Logger) *BrowserBackend {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "browser_backend", "site", site.Name)

	vopts.Rules = site.Rules
	vopts.Human = human
	vopts.Logger = logger
	vopts.OnAuthenticated = session.Checkpoint
	vopts.OnBlock = func(kind verification.BlockKind) {
		metrics.VerificationBlocks.WithLabelValues(site.Name, string(kind)).Inc()
	}

	return &BrowserBackend{
		session: session,
		nav:     navigation.NewForPage(session.Page(), human, logger),
		machine: verification.New(verification.NewPageDriver(session.Page(), logger), vopts),
		logger:  logger,
	}
}

func (b *BrowserBackend) Name() string { return "browser" }

// State exposes the verification state for diagnostics.
func (b *BrowserBackend) State() verification.State { return b.machine.State() }

func (b *BrowserBackend) Load(ctx context.Context, url, waitSelector string) (*Page, error) {
	res, err := b.nav.Load(ctx, url, navigation.LoadOptions{WaitSelector: waitSelector})
	if err != nil {
		return nil, err
	}

	before := b.machine.State()
	state, err := b.machine.Check(ctx, b.inspect(res))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBlocked, err)
	}

	// A fresh login lands on the account page, so the target is loaded again.
	if state == verification.Authenticated && before != verification.Authenticated {
		b.logger.Info("reloading target after login", "url", url)
		res, err = b.nav.Load(ctx, url, navigation.LoadOptions{WaitSelector: waitSelector})
		if err != nil {
			return nil, err
		}
		if _, err := b.machine.Check(ctx, b.inspect(res)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBlocked, err)
		}
	}

	return &Page{URL: url, FinalURL: res.FinalURL, Content: res.Content}, nil
}

func (b *BrowserBackend) inspect(res *navigation.Result) verification.Page {
	title, err := b.session.Page().Title()
	if err != nil {
		b.logger.Debug("failed to read title", "error", err)
	}
	return verification.Page{URL: res.FinalURL, Title: title, Content: res.Content}
}

// Get issues a request through the browser context so the session cookies ride along.
func (b *BrowserBackend) Get(ctx context.Context, url string, headers map[string]string) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	resp, err := b.session.Context().Request().Get(url, playwright.APIRequestContextGetOptions{
		Headers: headers,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("request %s: %w", url, err)
	}
	defer func() {
		if err := resp.Dispose(); err != nil {
			b.logger.Debug("failed to dispose response", "error", err)
		}
	}()

	status := resp.Status()
	body, err := resp.Body()
	if err != nil {
		return nil, status, fmt.Errorf("read %s: %w", url, err)
	}
	if status < 200 || status > 299 {
		return nil, status, &fetch.StatusError{URL: url, Code: status}
	}
	return body, status, nil
}

func (b *BrowserBackend) Close() error {
	return b.session.Close()
}
