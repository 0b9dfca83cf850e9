package captcha

import (
	"context"
	"errors"
	"time"
)

// minTokenLength is the shortest value of the hidden response field that
// counts as a real token. Shorter values are placeholders the widget puts
// there before resolution.
const minTokenLength = 10

// responseFieldID is the hidden field the reCAPTCHA widget fills in.
const responseFieldID = "g-recaptcha-response"

// ErrTimeout is returned when no token could be obtained within the
// strategy's time budget.
var ErrTimeout = errors.New("captcha resolution timed out")

// Page is the slice of the browser session the strategies need.
type Page interface {
	Evaluate(ctx context.Context, expr string, out interface{}) error
	CurrentURL(ctx context.Context) (string, error)
}

// Strategy resolves one captcha challenge on the given page. On success it
// returns the response token; an empty token with a nil error means no
// challenge was actually presented.
type Strategy interface {
	Resolve(ctx context.Context, challenge Challenge, page Page) (string, error)
}

// Challenge describes the captcha to resolve.
type Challenge struct {
	SiteKey string
	PageURL string
}

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
