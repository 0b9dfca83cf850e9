package scraper

import (
	"context"
	"time"
)

// Page is the browser capability the pipeline consumes. *browser.Session
// satisfies it; tests use scripted fakes.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, value string) error
	SetSelectValue(ctx context.Context, selector, value string) error
	Evaluate(ctx context.Context, expr string, out interface{}) error
	HTML(ctx context.Context) (string, error)
	BodyText(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	Back(ctx context.Context) error
}

// DebugSink persists page snapshots on failure paths.
type DebugSink interface {
	Capture(ctx context.Context, label string) error
}

// nopSink discards capture requests.
type nopSink struct{}

func (nopSink) Capture(context.Context, string) error { return nil }

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
