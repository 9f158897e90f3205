package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/slava225678/parsing-count/internal/ratelimit"
)

// hideWebdriver masks the automation flag that anti-bot scripts check first.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "ru-RU,ru;q=0.9,en;q=0.8",
		TimezoneID:     "Europe/Moscow",
		Locale:         "ru-RU",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

// LaunchArgs are the Chromium flags used for every session.
func (o *Options) LaunchArgs() []string {
	return []string{
		"--disable-blink-features=AutomationControlled",
		"--disable-dev-shm-usage",
		"--disable-gpu",
		"--no-sandbox",
		fmt.Sprintf("--window-size=%d,%d", o.ViewportWidth, o.ViewportHeight),
		"--user-agent=" + o.UserAgent,
	}
}

// New starts a fresh browser with its own context and a single tab. Every
// session is a separate browser process so nothing carries over between batches.
func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless:          playwright.Bool(opts.Headless),
		Args:              opts.LaunchArgs(),
		IgnoreDefaultArgs: []string{"--enable-automation"},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := map[string]string{"Accept-Language": opts.AcceptLanguage}
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(hideWebdriver)}); err != nil {
		bctx.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to install init script: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

	return &Browser{
		pw:      pw,
		browser: browser,
		context: bctx,
		page:    page,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

// Visit loads url in the session's tab, waits settle for client-side rendering
// and returns the resulting page HTML.
func (b *Browser) Visit(ctx context.Context, url string, settle time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, err := b.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(b.opts.Timeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}

	if err := ratelimit.Sleep(ctx, settle); err != nil {
		return "", err
	}

	html, err := b.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}

	if _, err := b.page.Evaluate(`window.scrollTo(0, 400)`); err != nil {
		b.logger.Debug("scroll failed", "error", err)
	}

	return html, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
