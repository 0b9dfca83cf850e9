package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/calfsync/calf-scraper/internal/config"
)

// Session owns a single Chrome instance for the whole run. The scraping
// pipeline is strictly sequential, so one browser context is enough and it
// lives exactly as long as the run does: Start acquires it, Close releases
// it unconditionally.
type Session struct {
	config config.BrowserConfig
	logger *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession creates a session that is not yet started
func NewSession(cfg config.BrowserConfig, logger *logrus.Logger) *Session {
	return &Session{
		config: cfg,
		logger: logger.WithField("component", "browser"),
	}
}

// Start launches Chrome and verifies it responds
func (s *Session) Start(ctx context.Context) error {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-features", "TranslateUI"),
		chromedp.Flag("disable-ipc-flooding-protection", true),
		chromedp.WindowSize(s.config.WindowWidth, s.config.WindowHeight),
		chromedp.UserAgent(s.config.UserAgent),
	}

	if s.config.Headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s.ctx = browserCtx
	s.cancel = func() {
		browserCancel()
		allocCancel()
	}

	// Health check with a simple navigation
	startTimeout := s.config.StartTimeout
	if startTimeout <= 0 {
		startTimeout = 30 * time.Second
	}
	testCtx, testCancel := context.WithTimeout(browserCtx, startTimeout)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		s.cancel()
		s.ctx = nil
		return fmt.Errorf("browser health check failed: %w", err)
	}

	s.logger.WithField("headless", s.config.Headless).Debug("Browser started")
	return nil
}

// Close shuts the browser down. Safe to call more than once and before Start.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.logger.Debug("Browser closed")
	}
}

// run executes chromedp actions against the session's browser context,
// bounded by the caller's deadline when one is set.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.ctx == nil {
		return fmt.Errorf("browser session is not started")
	}
	runCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(s.ctx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate navigates to a URL
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

// WaitVisible waits for an element to become visible within timeout
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Click clicks on an element
func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// SendKeys types into an element key by key
func (s *Session) SendKeys(ctx context.Context, selector, value string) error {
	return s.run(ctx, chromedp.SendKeys(selector, value, chromedp.ByQuery))
}

// SetSelectValue sets a select element's value and fires its change event
func (s *Session) SetSelectValue(ctx context.Context, selector, value string) error {
	if err := s.run(ctx, chromedp.SetValue(selector, value, chromedp.ByQuery)); err != nil {
		return err
	}
	expr := fmt.Sprintf(
		`document.querySelector(%q).dispatchEvent(new Event('change', { bubbles: true }))`,
		selector,
	)
	return s.run(ctx, chromedp.Evaluate(expr, nil))
}

// Evaluate runs a script in the page. out may be nil when the result does
// not matter.
func (s *Session) Evaluate(ctx context.Context, expr string, out interface{}) error {
	return s.run(ctx, chromedp.Evaluate(expr, out))
}

// HTML returns the full document markup
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// BodyText returns the rendered text of the page body
func (s *Session) BodyText(ctx context.Context) (string, error) {
	var text string
	err := s.run(ctx, chromedp.Text("body", &text, chromedp.ByQuery))
	return text, err
}

// CurrentURL returns the page's current location
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, chromedp.Location(&url))
	return url, err
}

// Back navigates one step back in the browser history
func (s *Session) Back(ctx context.Context) error {
	return s.run(ctx, chromedp.NavigateBack())
}

// Screenshot captures the full page as PNG
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.FullScreenshot(&buf, 80))
	return buf, err
}
