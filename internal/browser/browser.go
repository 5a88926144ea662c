package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/catalog-crawler/internal/cookies"
	"github.com/maltedev/catalog-crawler/internal/monitor"
	"github.com/maltedev/catalog-crawler/internal/stealth"
)

// ErrEngineStart is returned when the browser engine cannot be started even
// after installing the driver.
var ErrEngineStart = errors.New("browser engine failed to start")

var (
	runDriver     = func() (*playwright.Playwright, error) { return playwright.Run() }
	installDriver = func() error { return playwright.Install() }
)

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgents     []string
	ViewportWidth  int
	ViewportHeight int
	ProxyServer    string
	// BaseURL selects the regional profile.
	BaseURL        string
	CookiesFile    string
	RequestLogFile string
	ExtraHeaders   map[string]string
	Logger         *slog.Logger
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgents:     DefaultUserAgents(),
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

func launchArgs() []string {
	return []string{
		"--disable-blink-features=AutomationControlled",
		"--disable-dev-shm-usage",
		"--no-sandbox",
		"--disable-setuid-sandbox",
		"--disable-infobars",
		"--window-size=1920,1080",
	}
}

type closer struct {
	name string
	fn   func() error
}

// Session owns one browser, one context and one page for the duration of a run.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	opts      Options
	profile   Profile
	userAgent string
	monitor   *monitor.Monitor
	injector  *stealth.Injector
	logger    *slog.Logger

	mu      sync.Mutex
	closers []closer
	closed  bool
}

// Open starts the engine and prepares a ready page. Anything already acquired is
// released when a later step fails.
func Open(ctx context.Context, opts *Options) (*Session, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = DefaultUserAgents()
	}

	s := &Session{
		opts:      *opts,
		profile:   ProfileFor(opts.BaseURL),
		userAgent: opts.UserAgents[rand.Intn(len(opts.UserAgents))],
		monitor:   monitor.New(logger),
		logger:    opts.logger(),
	}
	s.injector = stealth.NewInjector(stealth.PersonaForHost(Host(opts.BaseURL)), logger)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := startDriver(s.logger)
	if err != nil {
		return nil, err
	}
	s.pw = pw
	s.push("playwright", pw.Stop)

	if err := s.launch(); err != nil {
		if cerr := s.Close(); cerr != nil {
			s.logger.Warn("cleanup after failed open", "error", cerr)
		}
		return nil, err
	}

	s.logger.Info("session opened",
		"locale", s.profile.Locale,
		"timezone", s.profile.TimezoneID,
		"headless", opts.Headless,
		"proxy", opts.ProxyServer != "")
	return s, nil
}

// startDriver runs the playwright driver, installing it once when the first
// start fails.
func startDriver(logger *slog.Logger) (*playwright.Playwright, error) {
	pw, err := runDriver()
	if err == nil {
		return pw, nil
	}
	logger.Warn("playwright start failed, installing driver", "error", err)
	if ierr := installDriver(); ierr != nil {
		return nil, fmt.Errorf("%w: install: %v (start: %v)", ErrEngineStart, ierr, err)
	}
	pw, err = runDriver()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineStart, err)
	}
	return pw, nil
}

func (s *Session) launch() error {
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.opts.Headless),
		Args:     launchArgs(),
	}
	if s.opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: s.opts.ProxyServer}
	}

	browser, err := s.pw.Chromium.Launch(launchOpts)
	if err != nil {
		return fmt.Errorf("%w: failed to launch browser: %v", ErrEngineStart, err)
	}
	s.browser = browser
	s.push("browser", func() error { return browser.Close() })

	headers := map[string]string{"Accept-Language": s.profile.AcceptLanguage}
	for k, v := range s.opts.ExtraHeaders {
		headers[k] = v
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(s.userAgent),
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            playwright.String(s.profile.Locale),
		TimezoneId:        playwright.String(s.profile.TimezoneID),
		Geolocation: &playwright.Geolocation{
			Latitude:  s.profile.Latitude,
			Longitude: s.profile.Longitude,
		},
		Permissions: []string{"geolocation"},
		ColorScheme: playwright.ColorSchemeLight,
		Viewport: &playwright.Size{
			Width:  s.opts.ViewportWidth,
			Height: s.opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		return fmt.Errorf("failed to create browser context: %w", err)
	}
	s.context = bctx
	s.push("context", func() error { return bctx.Close() })

	s.loadCookies()

	page, err := bctx.NewPage()
	if err != nil {
		return fmt.Errorf("failed to create new page: %w", err)
	}
	s.page = page
	s.push("page", func() error { return page.Close() })

	if s.opts.Timeout > 0 {
		page.SetDefaultTimeout(float64(s.opts.Timeout.Milliseconds()))
	}
	s.injector.Inject(page)
	s.monitor.Attach(page)
	return nil
}

func (s *Session) loadCookies() {
	if s.opts.CookiesFile == "" {
		return
	}
	entries, err := cookies.Load(s.opts.CookiesFile)
	if err != nil {
		s.logger.Warn("failed to load cookies", "path", s.opts.CookiesFile, "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}
	if err := s.context.AddCookies(cookies.ToPlaywright(entries)); err != nil {
		s.logger.Warn("failed to add cookies", "error", err)
		return
	}
	s.logger.Info("cookies loaded", "count", len(entries))
}

func (s *Session) push(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

func (s *Session) Page() playwright.Page {
	return s.page
}

func (s *Session) Context() playwright.BrowserContext {
	return s.context
}

func (s *Session) Monitor() *monitor.Monitor {
	return s.monitor
}

func (s *Session) Profile() Profile {
	return s.profile
}

func (s *Session) UserAgent() string {
	return s.userAgent
}

// Checkpoint writes the context's current cookies to the snapshot file.
func (s *Session) Checkpoint() error {
	if s.opts.CookiesFile == "" || s.context == nil {
		return nil
	}
	jar, err := s.context.Cookies()
	if err != nil {
		return fmt.Errorf("failed to read cookies: %w", err)
	}
	entries := cookies.FromPlaywright(jar)
	if err := cookies.Save(s.opts.CookiesFile, entries); err != nil {
		return err
	}
	s.logger.Info("cookies saved", "path", s.opts.CookiesFile, "count", len(entries))
	return nil
}

// Close persists cookies and the request log, then releases page, context,
// browser and driver in that order. Calling it again is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	if err := s.Checkpoint(); err != nil {
		s.logger.Warn("cookie checkpoint on close failed", "error", err)
	}
	if s.opts.RequestLogFile != "" && s.monitor != nil {
		if err := s.monitor.Save(s.opts.RequestLogFile); err != nil {
			s.logger.Warn("request log flush failed", "error", err)
		}
	}

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", closers[i].name, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.logger.Debug("session closed")
	return nil
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger.With("component", "browser")
	}
	return slog.Default().With("component", "browser")
}
