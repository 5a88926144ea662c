package verification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PageDriver drives the login form on a playwright page.
type PageDriver struct {
	page      playwright.Page
	lastField playwright.Locator
	logger    *slog.Logger
}

func NewPageDriver(page playwright.Page, logger *slog.Logger) *PageDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageDriver{page: page, logger: logger.With("component", "login")}
}

func (d *PageDriver) URL() string {
	return d.page.URL()
}

func (d *PageDriver) Goto(ctx context.Context, url string) error {
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(30000),
	})
	return err
}

func (d *PageDriver) firstVisible(selectors []string, timeout float64) (playwright.Locator, string, error) {
	for _, sel := range selectors {
		loc := d.page.Locator(sel).First()
		err := loc.WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(timeout),
		})
		if err == nil {
			return loc, sel, nil
		}
	}
	return nil, "", fmt.Errorf("no visible element for %d selectors", len(selectors))
}

func (d *PageDriver) Type(ctx context.Context, selectors []string, text string, delay func() time.Duration) error {
	field, sel, err := d.firstVisible(selectors, 5000)
	if err != nil {
		return err
	}
	d.logger.Debug("typing into field", "selector", sel)
	if err := field.Click(); err != nil {
		return err
	}
	for _, r := range text {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := field.PressSequentially(string(r), playwright.LocatorPressSequentiallyOptions{
			Delay: playwright.Float(float64(delay().Milliseconds())),
		}); err != nil {
			return err
		}
	}
	d.lastField = field
	return nil
}

func (d *PageDriver) Submit(ctx context.Context, selectors []string) error {
	button, sel, err := d.firstVisible(selectors, 3000)
	if err == nil {
		d.logger.Debug("clicking submit", "selector", sel)
		return button.Click()
	}
	if d.lastField == nil {
		return fmt.Errorf("no submit button and no focused field")
	}
	d.logger.Debug("no submit button found, pressing enter")
	return d.lastField.Press("Enter")
}

func (d *PageDriver) Settle(ctx context.Context) {
	for _, state := range []*playwright.LoadState{playwright.LoadStateDomcontentloaded, playwright.LoadStateNetworkidle} {
		if ctx.Err() != nil {
			return
		}
		if err := d.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   state,
			Timeout: playwright.Float(10000),
		}); err != nil {
			d.logger.Debug("settle wait timed out", "state", string(*state), "error", err)
		}
	}
}
