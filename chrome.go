package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// hideWebdriverScript removes the automation marker sites use to spot
// driven browsers.
const hideWebdriverScript = `Object.defineProperty(navigator, 'webdriver', {
	get: () => undefined
});`

type launchOptions struct {
	UserAgent string
	ExecPath  string
	// ProfileDir launches Chrome on a durable profile and reuses its first
	// page. Empty means a throwaway profile with a fresh browser context.
	ProfileDir     string
	HideAutomation bool
}

// browserSession is one running browser with the page the user logs in on.
type browserSession interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	Close() error
}

type launcher func(ctx context.Context, opts launchOptions) (browserSession, error)

// launchBrowser is swapped out in tests.
var launchBrowser launcher = launchChrome

type chromeSession struct {
	tab     context.Context
	browser context.Context
	cancels []context.CancelFunc
}

func launchChrome(ctx context.Context, opts launchOptions) (browserSession, error) {
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(1280, 720),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ProfileDir != "" {
		flags = append(flags, chromedp.UserDataDir(opts.ProfileDir))
	}
	if opts.ExecPath != "" {
		flags = append(flags, chromedp.ExecPath(opts.ExecPath))
	}

	s := &chromeSession{}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, flags...)
	s.cancels = append(s.cancels, cancelAlloc)

	// the first context starts Chrome and attaches to its initial page,
	// which for a durable profile is the page it already has open.
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		slog.Debug(fmt.Sprintf(format, args...))
	}))
	s.cancels = append(s.cancels, cancelBrowser)
	s.browser = browserCtx
	s.tab = browserCtx

	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if opts.ProfileDir == "" {
		tabCtx, cancelTab := chromedp.NewContext(browserCtx, chromedp.WithNewBrowserContext())
		s.cancels = append(s.cancels, cancelTab)
		s.tab = tabCtx
	}

	setup := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
	}
	if opts.HideAutomation {
		setup = append(setup, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverScript).Do(ctx)
			return err
		}))
	}
	if err := chromedp.Run(s.tab, setup); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare browser page: %w", err)
	}

	return s, nil
}

func (s *chromeSession) Navigate(_ context.Context, url string) error {
	return chromedp.Run(s.tab, chromedp.Navigate(url))
}

func (s *chromeSession) URL(_ context.Context) (string, error) {
	var loc string
	if err := chromedp.Run(s.tab, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Cookies returns every cookie of the page's browser context, not only the
// ones scoped to the current URL.
func (s *chromeSession) Cookies(_ context.Context) ([]Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(s.tab, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		var err error
		cookies, err = storage.GetCookies().
			WithBrowserContextID(c.BrowserContextID).
			Do(cdp.WithExecutor(ctx, c.Browser))
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read browser cookies: %w", err)
	}

	out := make([]Cookie, 0, len(cookies))
	for _, ck := range cookies {
		expires := ck.Expires
		if ck.Session {
			expires = -1
		}
		out = append(out, Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Expires:  expires,
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
			SameSite: ck.SameSite.String(),
		})
	}
	return out, nil
}

// Close tears down the tab, the browser and the allocator, newest first.
func (s *chromeSession) Close() error {
	var errs []error
	if s.tab != nil && s.tab != s.browser {
		errs = append(errs, chromedp.Cancel(s.tab))
	}
	if s.browser != nil {
		errs = append(errs, chromedp.Cancel(s.browser))
	}
	for i := len(s.cancels) - 1; i >= 0; i-- {
		s.cancels[i]()
	}
	s.cancels = nil
	s.tab, s.browser = nil, nil
	return errors.Join(errs...)
}
