// Package render loads live pages through a headless Chromium and hands them
// over as documents.
//
// A Renderer owns one Playwright driver and one browser. Every Render call
// gets a fresh browser context, so pages never share cookies or storage,
// and returns the serialized DOM after the page reached the configured load
// state. Script-inserted content is therefore part of the document the
// highlighter sees.
package render

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/entrhq/gloss/pkg/dom"
	"github.com/entrhq/gloss/pkg/logging"
	"github.com/playwright-community/playwright-go"
)

const (
	// DefaultTimeout bounds a single navigation.
	DefaultTimeout = 30 * time.Second
	// DefaultViewportWidth is the default viewport width in pixels.
	DefaultViewportWidth = 1280
	// DefaultViewportHeight is the default viewport height in pixels.
	DefaultViewportHeight = 720
)

var renderLog *logging.Logger

func init() {
	var err error
	renderLog, err = logging.NewLogger("render")
	if err != nil {
		renderLog.Warnf("Failed to initialize render logger, using stderr fallback: %v", err)
	}
}

// Options configure a Renderer.
type Options struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Timeout bounds each navigation.
	Timeout time.Duration

	// WaitUntil specifies when to consider navigation successful
	// Valid values: "load", "domcontentloaded", "networkidle"
	WaitUntil string

	// Viewport sets the page size. Zero values select the defaults.
	Width, Height int

	// SkipInstall assumes the driver and browsers are already installed.
	SkipInstall bool

	Logger *logging.Logger
}

// withDefaults fills zero values and rejects invalid ones.
func (o Options) withDefaults() (Options, error) {
	if o.Timeout < 0 {
		return o, fmt.Errorf("timeout cannot be negative")
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	switch o.WaitUntil {
	case "":
		o.WaitUntil = "load"
	case "load", "domcontentloaded", "networkidle":
	default:
		return o, fmt.Errorf("invalid wait_until %q (must be 'load', 'domcontentloaded', or 'networkidle')", o.WaitUntil)
	}
	if o.Width <= 0 {
		o.Width = DefaultViewportWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultViewportHeight
	}
	if o.Logger == nil {
		o.Logger = renderLog
	}
	return o, nil
}

// Renderer turns URLs into documents.
type Renderer struct {
	opts Options

	mu          sync.Mutex
	playwright  *playwright.Playwright
	browser     playwright.Browser
	initialized bool
}

// New validates opts and returns a Renderer. Call Start before Render.
func New(opts Options) (*Renderer, error) {
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Renderer{opts: o}, nil
}

// Start installs the driver if needed, starts it and launches Chromium.
func (r *Renderer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}

	// Driver output would interleave with command output.
	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if !r.opts.SkipInstall {
		if err := playwright.Install(runOpts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &r.opts.Headless,
	})
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	r.playwright = pw
	r.browser = browser
	r.initialized = true
	r.opts.Logger.Infof("Chromium started (headless=%v)", r.opts.Headless)
	return nil
}

// Render navigates to pageURL and returns the loaded page as a document
// addressed by the final URL after redirects.
func (r *Renderer) Render(ctx context.Context, pageURL string) (*dom.Document, error) {
	r.mu.Lock()
	browser := r.browser
	initialized := r.initialized
	r.mu.Unlock()
	if !initialized {
		return nil, fmt.Errorf("renderer not started")
	}

	timeout, err := navigationTimeout(ctx, r.opts.Timeout)
	if err != nil {
		return nil, err
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  r.opts.Width,
			Height: r.opts.Height,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	page.SetDefaultTimeout(timeout)

	start := time.Now()
	waitUntil := playwright.WaitUntilState(r.opts.WaitUntil)
	if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: &waitUntil,
		Timeout:   &timeout,
	}); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}
	finalURL := page.URL()
	r.opts.Logger.Debugf("Rendered %s (%d bytes) in %s", finalURL, len(content), time.Since(start))

	doc, err := dom.ParseString(content, finalURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", finalURL, err)
	}
	return doc, nil
}

// Close shuts the browser and the driver down.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil
	}
	r.initialized = false

	var errs []error
	if err := r.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.playwright.Stop(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing renderer: %v", errs)
	}
	return nil
}

// navigationTimeout returns the navigation timeout in milliseconds, capped
// by the context deadline.
func navigationTimeout(ctx context.Context, limit time.Duration) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, context.DeadlineExceeded
		}
		if remaining < limit {
			limit = remaining
		}
	}
	return float64(limit.Milliseconds()), nil
}
