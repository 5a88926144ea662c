package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maltedev/catalog-crawler/internal/fetch"
	"github.com/maltedev/catalog-crawler/internal/navigation"
	"github.com/maltedev/catalog-crawler/internal/verification"
)

const minStaticContent = 100

// StaticBackend fetches pages over plain HTTP. It cannot clear walls, so any
// wall it sees is reported as ErrBlocked.
type StaticBackend struct {
	client *fetch.Client
	rules  verification.Rules
	logger *slog.Logger
}

func NewStaticBackend(client *fetch.Client, rules verification.Rules, logger *slog.Logger) *StaticBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticBackend{
		client: client,
		rules:  rules,
		logger: logger.With("component", "static_backend"),
	}
}

func (b *StaticBackend) Name() string { return "static" }

func (b *StaticBackend) Load(ctx context.Context, url, _ string) (*Page, error) {
	content, err := b.client.Fetch(ctx, url)
	if err != nil {
		var se *fetch.StatusError
		if errors.As(err, &se) && se.Blocked() {
			return nil, fmt.Errorf("%w: %w", ErrBlocked, err)
		}
		if errors.Is(err, fetch.ErrEmptyBody) {
			return nil, navigation.ErrEmptyContent
		}
		return nil, err
	}

	if len(strings.TrimSpace(content)) < minStaticContent {
		return nil, navigation.ErrEmptyContent
	}

	page := verification.Page{URL: url, Content: content}
	kind := verification.Classify(page)
	if b.rules.Detect(page) != verification.NoWall || kind == verification.BlockCaptcha {
		b.logger.Warn("wall on static fetch", "url", url, "block", string(kind))
		return nil, fmt.Errorf("%w: %s wall at %s", ErrBlocked, kind, url)
	}

	return &Page{URL: url, FinalURL: url, Content: content}, nil
}

func (b *StaticBackend) Get(ctx context.Context, url string, headers map[string]string) ([]byte, int, error) {
	return b.client.Get(ctx, url, headers)
}

func (b *StaticBackend) Close() error { return nil }
