package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gocolly/colly"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultTimeout   = 30 * time.Second
)

var ErrEmptyBody = errors.New("empty response body")

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Code)
}

// Blocked reports whether the status is one the sites use to turn crawlers away.
func (e *StatusError) Blocked() bool {
	switch e.Code {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return false
}

type Options struct {
	UserAgent   string
	Timeout     time.Duration
	ProxyURL    string
	Headers     map[string]string
	Delay       time.Duration
	RandomDelay time.Duration
	Logger      *slog.Logger
}

// Client fetches pages over plain HTTP through a colly collector. Every
// Fetch runs on a clone so concurrent calls never share callbacks.
type Client struct {
	collector *colly.Collector
	headers   map[string]string
	logger    *slog.Logger
}

func New(opts Options) (*Client, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	collector := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(opts.Timeout)

	if opts.Delay > 0 || opts.RandomDelay > 0 {
		if err := collector.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: 1,
			Delay:       opts.Delay,
			RandomDelay: opts.RandomDelay,
		}); err != nil {
			return nil, fmt.Errorf("failed to set limit rule: %w", err)
		}
	}

	if opts.ProxyURL != "" {
		if err := collector.SetProxy(opts.ProxyURL); err != nil {
			return nil, fmt.Errorf("failed to set proxy: %w", err)
		}
	}

	return &Client{
		collector: collector,
		headers:   opts.Headers,
		logger:    logger.With("component", "fetch"),
	}, nil
}

// NewMirror builds a client for the text-rendering mirror, which answers
// with markdown instead of html.
func NewMirror(opts Options) (*Client, error) {
	headers := map[string]string{"X-Return-Format": "markdown"}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	opts.Headers = headers
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return New(opts)
}

func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	body, _, err := c.Get(ctx, url, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Get performs one GET with the client headers plus headers and returns the
// body and status. Responses outside 2xx come back as *StatusError.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	collector := c.collector.Clone()

	var (
		body   []byte
		status int
	)

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		for k, v := range c.headers {
			r.Headers.Set(k, v)
		}
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	start := time.Now()
	err := collector.Visit(url)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, status, ctxErr
	}

	if status != 0 && (status < 200 || status > 299) {
		c.logger.Warn("non-success status", "url", url, "status", status)
		return nil, status, &StatusError{URL: url, Code: status}
	}
	if err != nil {
		return nil, status, fmt.Errorf("fetch %s: %w", url, err)
	}
	if len(body) == 0 {
		return nil, status, fmt.Errorf("fetch %s: %w", url, ErrEmptyBody)
	}

	c.logger.Debug("fetched", "url", url, "status", status, "bytes", len(body), "duration", time.Since(start))
	return body, status, nil
}
