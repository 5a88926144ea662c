package humanize

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

type PageMetrics struct {
	ScrollY        float64
	ScrollHeight   float64
	ViewportWidth  float64
	ViewportHeight float64
}

// Executor performs the low level actions the humanizer decides on.
type Executor interface {
	MoveMouse(ctx context.Context, x, y float64, steps int) error
	ScrollBy(ctx context.Context, dy float64) error
	ScrollTo(ctx context.Context, y float64) error
	Metrics(ctx context.Context) (PageMetrics, error)
	Sleep(ctx context.Context, d time.Duration) error
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PageExecutor drives a playwright page.
type PageExecutor struct {
	page playwright.Page
}

func NewPageExecutor(page playwright.Page) *PageExecutor {
	return &PageExecutor{page: page}
}

func (e *PageExecutor) MoveMouse(ctx context.Context, x, y float64, steps int) error {
	return e.page.Mouse().Move(x, y, playwright.MouseMoveOptions{Steps: playwright.Int(steps)})
}

func (e *PageExecutor) ScrollBy(ctx context.Context, dy float64) error {
	_, err := e.page.Evaluate(`(dy) => window.scrollBy(0, dy)`, dy)
	return err
}

func (e *PageExecutor) ScrollTo(ctx context.Context, y float64) error {
	_, err := e.page.Evaluate(`(y) => window.scrollTo(0, y)`, y)
	return err
}

const metricsScript = `() => ({
	scrollY: window.scrollY || window.pageYOffset || 0,
	scrollHeight: document.body ? document.body.scrollHeight : 0,
	width: window.innerWidth,
	height: window.innerHeight
})`

func (e *PageExecutor) Metrics(ctx context.Context) (PageMetrics, error) {
	raw, err := e.page.Evaluate(metricsScript)
	if err != nil {
		return PageMetrics{}, err
	}
	values, ok := raw.(map[string]interface{})
	if !ok {
		return PageMetrics{}, fmt.Errorf("unexpected metrics result %T", raw)
	}
	return PageMetrics{
		ScrollY:        toFloat(values["scrollY"]),
		ScrollHeight:   toFloat(values["scrollHeight"]),
		ViewportWidth:  toFloat(values["width"]),
		ViewportHeight: toFloat(values["height"]),
	}, nil
}

func (e *PageExecutor) Sleep(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	default:
		return 0
	}
}
