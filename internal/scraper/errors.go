package scraper

import "errors"

// Fatal failure classes. Anything wrapping one of these aborts the run;
// degraded extraction and per-account detail failures are absorbed and
// only logged.
var (
	// ErrFormNotFound means the login form never rendered within its wait
	// budget.
	ErrFormNotFound = errors.New("login form not found")

	// ErrCaptchaTimeout means no captcha token was obtained in time.
	ErrCaptchaTimeout = errors.New("captcha not resolved in time")

	// ErrCaptchaRejected means the portal flagged the session as a bot
	// after submit.
	ErrCaptchaRejected = errors.New("portal rejected the captcha")

	// ErrLoginUnconfirmed means no success nor failure signal appeared
	// within the verification window.
	ErrLoginUnconfirmed = errors.New("login could not be confirmed")
)
