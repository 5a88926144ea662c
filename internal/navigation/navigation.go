// Package navigation loads pages with layered, advisory waits and lazy-load scrolling.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/catalog-crawler/internal/humanize"
)

// ErrEmptyContent is returned when the loaded document is too short to be a real page.
var ErrEmptyContent = errors.New("page content empty or too short")

const minContentLength = 100

// Page is the subset of playwright.Page the controller drives.
type Page interface {
	Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error)
	WaitForSelector(selector string, options ...playwright.PageWaitForSelectorOptions) (playwright.ElementHandle, error)
	WaitForLoadState(options ...playwright.PageWaitForLoadStateOptions) error
	Content() (string, error)
	URL() string
}

type LoadOptions struct {
	WaitSelector string
	Timeout      time.Duration
	Referer      string
}

type Result struct {
	FinalURL      string
	Content       string
	DOMReady      bool
	NetworkIdle   bool
	SelectorFound bool
	Scrolls       int
}

type Config struct {
	GotoTimeout     time.Duration
	SelectorTimeout time.Duration
	DOMTimeout      time.Duration
	IdleTimeout     time.Duration
	MaxScrolls      int
	ScrollStepMin   int
	ScrollStepMax   int
	ScrollPauseMin  time.Duration
	ScrollPauseMax  time.Duration
}

func DefaultConfig() Config {
	return Config{
		GotoTimeout:     60 * time.Second,
		SelectorTimeout: 20 * time.Second,
		DOMTimeout:      15 * time.Second,
		IdleTimeout:     20 * time.Second,
		MaxScrolls:      3,
		ScrollStepMin:   300,
		ScrollStepMax:   800,
		ScrollPauseMin:  time.Second,
		ScrollPauseMax:  1500 * time.Millisecond,
	}
}

type Controller struct {
	page   Page
	exec   humanize.Executor
	human  *humanize.Humanizer
	cfg    Config
	logger *slog.Logger
}

func New(page Page, exec humanize.Executor, human *humanize.Humanizer, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		page:   page,
		exec:   exec,
		human:  human,
		cfg:    cfg,
		logger: logger.With("component", "navigation"),
	}
}

// NewForPage wires a controller to a live playwright page.
func NewForPage(page playwright.Page, human *humanize.Humanizer, logger *slog.Logger) *Controller {
	return New(page, humanize.NewPageExecutor(page), human, DefaultConfig(), logger)
}

// Load navigates to target and returns whatever content is present once every wait
// stage has finished or timed out. Only an empty document and cancellation are errors.
func (c *Controller) Load(ctx context.Context, target string, opts LoadOptions) (*Result, error) {
	log := c.logger.With("url", target)

	if err := c.human.PreNavigationDelay(ctx, c.exec); err != nil {
		return nil, fmt.Errorf("navigation cancelled: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.GotoTimeout
	}
	gotoOpts := playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(ms(timeout)),
	}
	if referer := opts.Referer; referer != "" {
		gotoOpts.Referer = playwright.String(referer)
	} else if referer := defaultReferer(target); referer != "" {
		gotoOpts.Referer = playwright.String(referer)
	}
	if _, err := c.page.Goto(target, gotoOpts); err != nil {
		log.Warn("navigation error, inspecting current content", "error", err)
	}

	res := &Result{}

	if opts.WaitSelector != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, err := c.page.WaitForSelector(opts.WaitSelector, playwright.PageWaitForSelectorOptions{
			State:   playwright.WaitForSelectorStateAttached,
			Timeout: playwright.Float(ms(c.cfg.SelectorTimeout)),
		})
		if err != nil {
			log.Info("selector wait timed out, continuing", "selector", opts.WaitSelector, "error", err)
		} else {
			res.SelectorFound = true
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(ms(c.cfg.DOMTimeout)),
	}); err != nil {
		log.Info("dom wait timed out, continuing", "error", err)
	} else {
		res.DOMReady = true
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(ms(c.cfg.IdleTimeout)),
	}); err != nil {
		log.Info("network idle wait timed out, continuing", "error", err)
	} else {
		res.NetworkIdle = true
	}

	if err := c.human.Simulate(ctx, c.exec); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug("human simulation failed", "error", err)
	}

	scrolls, err := c.Scroll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug("lazy scroll failed", "error", err)
	}
	res.Scrolls = scrolls

	content, err := c.page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if len(content) < minContentLength {
		return nil, fmt.Errorf("%w: %d bytes from %s", ErrEmptyContent, len(content), target)
	}
	res.Content = content
	res.FinalURL = c.page.URL()

	log.Info("page loaded",
		"final_url", res.FinalURL,
		"bytes", len(content),
		"dom_ready", res.DOMReady,
		"network_idle", res.NetworkIdle,
		"scrolls", res.Scrolls)
	return res, nil
}

// Scroll moves down the page in random steps to trigger lazy loading. It stops when
// the document height is unchanged twice or after MaxScrolls iterations, and returns
// the number of iterations run.
func (c *Controller) Scroll(ctx context.Context) (int, error) {
	m, err := c.exec.Metrics(ctx)
	if err != nil {
		return 0, err
	}
	lastHeight := m.ScrollHeight
	position := m.ScrollY
	unchanged := 0

	i := 0
	for i < c.cfg.MaxScrolls {
		i++
		target := position + float64(c.human.Between(c.cfg.ScrollStepMin, c.cfg.ScrollStepMax))
		if target > lastHeight {
			target = lastHeight
		}
		if err := c.exec.ScrollTo(ctx, target); err != nil {
			return i, err
		}
		if err := c.human.Pause(ctx, c.exec, c.cfg.ScrollPauseMin, c.cfg.ScrollPauseMax); err != nil {
			return i, err
		}

		m, err := c.exec.Metrics(ctx)
		if err != nil {
			return i, err
		}
		position = m.ScrollY
		if m.ScrollHeight == lastHeight {
			unchanged++
			if unchanged >= 2 {
				break
			}
		} else {
			unchanged = 0
		}
		lastHeight = m.ScrollHeight

		if c.human.Chance(0.3) {
			if err := c.human.Simulate(ctx, c.exec); err != nil {
				c.logger.Debug("human simulation during scroll failed", "error", err)
			}
		}
	}
	return i, nil
}

func defaultReferer(target string) string {
	if !strings.Contains(target, "/search") && !strings.Contains(target, "/s?") && !strings.Contains(target, "/sch/") {
		return ""
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
