package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	viewportWidth  = 1920
	viewportHeight = 1080

	// Navigation plus scrolling must finish within this budget; a page
	// that takes longer is treated as unreachable.
	renderTimeout = 60 * time.Second

	scrollStep      = 100
	scrollPause     = 100 * time.Millisecond
	maxScrollPixels = 5000
)

// Browser fetches the rendered page HTML with headless Chrome. The listing
// page lazy-loads cards and images, so it scrolls in fixed increments to
// force them to materialize before the DOM is captured.
type Browser struct {
	url      string
	execPath string
	timeout  time.Duration
}

// NewBrowser creates a Browser for the given page. execPath optionally
// points at a Chrome binary; when empty, chromedp locates one itself.
func NewBrowser(pageURL, execPath string) *Browser {
	return &Browser{url: pageURL, execPath: execPath, timeout: renderTimeout}
}

// FetchHTML navigates to the page with a desktop viewport, scrolls to
// trigger lazy loading, and returns the rendered document. The browser
// process is always released, on success or failure.
func (b *Browser) FetchHTML(ctx context.Context) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
	)
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, b.timeout)
	defer cancelRun()

	var htmlSrc string
	err := chromedp.Run(runCtx,
		chromedp.EmulateViewport(viewportWidth, viewportHeight),
		chromedp.Navigate(b.url),
		scrollToBottom(),
		chromedp.OuterHTML("html", &htmlSrc, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return htmlSrc, nil
}

// scrollToBottom scrolls the page in scrollStep increments until the bottom
// is reached or maxScrollPixels have been covered. The cap bounds execution
// time regardless of page height.
func scrollToBottom() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		for total := 0; total < maxScrollPixels; total += scrollStep {
			script := fmt.Sprintf("window.scrollBy(0, %d)", scrollStep)
			if err := chromedp.Evaluate(script, nil).Do(ctx); err != nil {
				return err
			}

			var atBottom bool
			const check = "window.scrollY + window.innerHeight >= document.body.scrollHeight"
			if err := chromedp.Evaluate(check, &atBottom).Do(ctx); err != nil {
				return err
			}
			if atBottom {
				return nil
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(scrollPause):
			}
		}
		return nil
	}
}
