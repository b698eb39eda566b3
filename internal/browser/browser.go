// Package browser drives a real browser through the streaming site with
// playwright. Capture sessions route all traffic through the proxy.
package browser

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/playwright-community/playwright-go"

	"github.com/alvarorichard/anistrm/internal/util"
)

// StealthScript hides the automation flag the site's player checks.
const StealthScript = "delete Object.getPrototypeOf(navigator).webdriver;"

var (
	// ErrDubUnavailable means the episode page offers no usable dub control.
	ErrDubUnavailable = errors.New("dub control unavailable")
	// ErrNotReady means the page never showed its ready selector.
	ErrNotReady = errors.New("page not ready")
)

// Options configures the launcher.
type Options struct {
	Engine            string // firefox or chromium
	Headless          bool
	NavigationTimeout time.Duration
	ClickTimeout      time.Duration
	ReadySelector     string
	DubSelector       string
	InitScript        string
	Install           bool // download the driver and browser on first start
}

// Launcher owns the playwright driver and launches browsers on demand.
type Launcher struct {
	opts Options

	mu sync.Mutex
	pw *playwright.Playwright

	// plainMu is held across the nil check and the launch of plain so
	// concurrent fetches share one browser. It is never taken while mu is
	// held.
	plainMu sync.Mutex
	plain   playwright.Browser

	launchFn func(proxyAddr string) (playwright.Browser, error)
}

// NewLauncher returns a launcher. The driver starts on first use.
func NewLauncher(opts Options) *Launcher {
	if opts.Engine == "" {
		opts.Engine = "firefox"
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 60 * time.Second
	}
	if opts.ClickTimeout <= 0 {
		opts.ClickTimeout = 10 * time.Second
	}
	if opts.InitScript == "" {
		opts.InitScript = StealthScript
	}
	l := &Launcher{opts: opts}
	l.launchFn = l.launch
	return l
}

func (l *Launcher) driver() (*playwright.Playwright, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw != nil {
		return l.pw, nil
	}
	if l.opts.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{l.opts.Engine}}); err != nil {
			return nil, errors.Wrap(err, "install playwright")
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, errors.Wrap(err, "start playwright")
	}
	l.pw = pw
	return pw, nil
}

func (l *Launcher) launch(proxyAddr string) (playwright.Browser, error) {
	pw, err := l.driver()
	if err != nil {
		return nil, err
	}

	bt := pw.Firefox
	if l.opts.Engine == "chromium" {
		bt = pw.Chromium
	}

	opts := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(l.opts.Headless)}
	if proxyAddr != "" {
		opts.Proxy = &playwright.Proxy{Server: proxyAddr}
	}
	browser, err := bt.Launch(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "launch %s", l.opts.Engine)
	}
	return browser, nil
}

// Open launches a browser behind proxyAddr and opens one page in a fresh
// context that trusts the proxy's certificates.
func (l *Launcher) Open(ctx context.Context, proxyAddr string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := l.launchFn(proxyAddr)
	if err != nil {
		return nil, err
	}
	bctx, page, err := newPage(browser, l.opts.InitScript)
	if err != nil {
		_ = browser.Close()
		return nil, err
	}

	util.Debug("Browser session opened", "engine", l.opts.Engine, "proxy", proxyAddr)
	return &Session{opts: l.opts, browser: browser, context: bctx, page: page}, nil
}

// FetchHTML renders url without the proxy and returns the DOM once
// waitSelector is attached.
func (l *Launcher) FetchHTML(ctx context.Context, url, waitSelector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	browser, err := l.plainBrowser()
	if err != nil {
		return "", err
	}

	bctx, page, err := newPage(browser, l.opts.InitScript)
	if err != nil {
		return "", err
	}
	defer func() { _ = bctx.Close() }()

	timeout := timeoutMillis(ctx, l.opts.NavigationTimeout)
	if _, err := page.Goto(url, playwright.PageGotoOptions{Timeout: timeout}); err != nil {
		return "", errors.Wrapf(err, "open %s", url)
	}
	if waitSelector != "" {
		err := page.Locator(waitSelector).First().WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateAttached,
			Timeout: timeoutMillis(ctx, l.opts.NavigationTimeout),
		})
		if err != nil {
			return "", errors.Wrapf(err, "wait for %q on %s", waitSelector, url)
		}
	}
	html, err := page.Content()
	if err != nil {
		return "", errors.Wrap(err, "read page content")
	}
	return html, nil
}

// plainBrowser returns the shared proxy-less browser, launching it once.
func (l *Launcher) plainBrowser() (playwright.Browser, error) {
	l.plainMu.Lock()
	defer l.plainMu.Unlock()

	if l.plain != nil {
		return l.plain, nil
	}
	b, err := l.launchFn("")
	if err != nil {
		return nil, err
	}
	l.plain = b
	return b, nil
}

// Close shuts down the shared browser and the driver.
func (l *Launcher) Close() error {
	var firstErr error

	l.plainMu.Lock()
	if l.plain != nil {
		if err := l.plain.Close(); err != nil {
			firstErr = err
		}
		l.plain = nil
	}
	l.plainMu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pw != nil {
		if err := l.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.pw = nil
	}
	return firstErr
}

func newPage(browser playwright.Browser, initScript string) (playwright.BrowserContext, playwright.Page, error) {
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
		UserAgent:         playwright.String(util.UserAgent),
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "new browser context")
	}
	if strings.TrimSpace(initScript) != "" {
		if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(initScript)}); err != nil {
			_ = bctx.Close()
			return nil, nil, errors.Wrap(err, "add init script")
		}
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, nil, errors.Wrap(err, "new page")
	}
	return bctx, page, nil
}

// timeoutMillis caps d by the context deadline, in playwright's unit.
func timeoutMillis(ctx context.Context, d time.Duration) *float64 {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}
