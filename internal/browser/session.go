package browser

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/playwright-community/playwright-go"

	"github.com/alvarorichard/anistrm/internal/util"
)

// Session is one browser, one context and one page, living as long as a
// proxy session.
type Session struct {
	opts    Options
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

// Navigate opens url in the session page. Timeouts are reported wrapped
// around playwright.ErrTimeout so callers can treat them as soft.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   timeoutMillis(ctx, s.opts.NavigationTimeout),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return errors.Wrapf(err, "navigate to %s", url)
	}
	return nil
}

// WaitReady waits for the player container to appear.
func (s *Session) WaitReady(ctx context.Context, timeout time.Duration) error {
	if s.opts.ReadySelector == "" {
		return nil
	}
	err := s.page.Locator(s.opts.ReadySelector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: timeoutMillis(ctx, timeout),
	})
	if err != nil {
		return errors.Wrapf(ErrNotReady, "%s: %v", s.opts.ReadySelector, err)
	}
	return nil
}

// ToggleDub switches the player to the dubbed audio server.
func (s *Session) ToggleDub(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	buttons := s.page.Locator(s.opts.DubSelector)
	count, err := buttons.Count()
	if err != nil {
		return errors.Wrapf(ErrDubUnavailable, "count %q: %v", s.opts.DubSelector, err)
	}
	if count == 0 {
		return ErrDubUnavailable
	}

	button := buttons.First()
	if visible, err := button.IsVisible(); err != nil || !visible {
		return errors.Wrap(ErrDubUnavailable, "dub control hidden")
	}
	if err := button.Click(playwright.LocatorClickOptions{
		Timeout: timeoutMillis(ctx, s.opts.ClickTimeout),
	}); err != nil {
		return errors.Wrapf(ErrDubUnavailable, "click: %v", err)
	}
	util.Debug("Dub server selected")
	return nil
}

// Close tears down the page, its context and the browser.
func (s *Session) Close() error {
	if err := s.context.Close(); err != nil {
		util.Debug("Closing browser context", "error", err)
	}
	return s.browser.Close()
}
