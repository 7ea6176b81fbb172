package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"BookPublisher/internal/ports"
)

// ErrRenderTimeout marks a page that did not reach the wait selector in time.
var ErrRenderTimeout = errors.New("page render timed out")

// ChromeOptions configures the headless browser.
type ChromeOptions struct {
	Headless bool
	ExecPath string
	Timeout  time.Duration
	Errorf   func(string, ...any)
}

// ChromeRenderer drives a headless Chrome instance through chromedp.
// Each Render call owns its browser process and tears it down before returning.
type ChromeRenderer struct {
	opts ChromeOptions
}

var _ ports.PageRenderer = (*ChromeRenderer)(nil)

// NewChromeRenderer applies a 60s timeout when none is given.
func NewChromeRenderer(opts ChromeOptions) *ChromeRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &ChromeRenderer{opts: opts}
}

// Render navigates to req.URL, waits for req.WaitSelector to become visible, then
// reads the title, the outer HTML and (optionally) a full-page PNG screenshot.
func (r *ChromeRenderer) Render(ctx context.Context, req ports.RenderRequest) (ports.RenderedPage, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.opts.Headless),
	)
	if r.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	var ctxOpts []chromedp.ContextOption
	if r.opts.Errorf != nil {
		ctxOpts = append(ctxOpts, chromedp.WithErrorf(r.opts.Errorf))
	}
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, ctxOpts...)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, r.opts.Timeout)
	defer cancelRun()

	var page ports.RenderedPage
	actions := []chromedp.Action{
		chromedp.Navigate(req.URL),
		chromedp.WaitVisible(req.WaitSelector, chromedp.ByQuery),
		chromedp.Title(&page.Title),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	}
	if req.Screenshot {
		// quality 100 makes chromedp emit PNG
		actions = append(actions, chromedp.FullScreenshot(&page.Screenshot, 100))
	}

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return ports.RenderedPage{}, fmt.Errorf("%w: %s waiting for %q", ErrRenderTimeout, req.URL, req.WaitSelector)
		}
		return ports.RenderedPage{}, fmt.Errorf("render %s: %w", req.URL, err)
	}

	if req.Screenshot && len(page.Screenshot) == 0 {
		return ports.RenderedPage{}, fmt.Errorf("render %s: empty screenshot", req.URL)
	}

	return page, nil
}
