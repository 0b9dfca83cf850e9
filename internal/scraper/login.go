package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/calfsync/calf-scraper/internal/captcha"
	"github.com/calfsync/calf-scraper/internal/config"
)

// Login form control ids and page markers of the portal.
const (
	tipoSelectID      = "#vTIPOID"
	nroInputID        = "#vNROID"
	loginButtonID     = "#LOGIN"
	successMarker     = "Cuentas de la persona"
	loginPathFragment = "portalloginsinregistro"
)

// LoginState is one step of the login progression.
type LoginState string

const (
	StateStart             LoginState = "start"
	StateFormLoaded        LoginState = "form_loaded"
	StateIdentifierEntered LoginState = "identifier_entered"
	StateCaptchaPending    LoginState = "captcha_pending"
	StateCaptchaResolved   LoginState = "captcha_resolved"
	StateSubmitted         LoginState = "submitted"
	StateVerifying         LoginState = "verifying"
	StateSuccess           LoginState = "success"
	StateFailed            LoginState = "failed"
)

// LoginFlow drives the portal login from a fresh page to a confirmed
// session. It runs forward only; retrying a failed login is the caller's
// decision, not the flow's.
type LoginFlow struct {
	portal   config.PortalConfig
	page     Page
	strategy captcha.Strategy
	debug    DebugSink
	logger   *logrus.Entry

	state LoginState

	formTimeout    time.Duration
	verifyAttempts int
	verifyInterval time.Duration
}

// NewLoginFlow creates a flow over page using the given captcha strategy
func NewLoginFlow(portal config.PortalConfig, page Page, strategy captcha.Strategy, debug DebugSink, logger *logrus.Logger) *LoginFlow {
	if debug == nil {
		debug = nopSink{}
	}
	flow := &LoginFlow{
		portal:         portal,
		page:           page,
		strategy:       strategy,
		debug:          debug,
		logger:         logger.WithField("component", "login"),
		state:          StateStart,
		formTimeout:    portal.FormTimeout,
		verifyAttempts: portal.VerifyAttempts,
		verifyInterval: portal.VerifyInterval,
	}
	if flow.formTimeout <= 0 {
		flow.formTimeout = 30 * time.Second
	}
	if flow.verifyAttempts <= 0 {
		flow.verifyAttempts = 20
	}
	if flow.verifyInterval <= 0 {
		flow.verifyInterval = 1 * time.Second
	}
	return flow
}

// State returns the flow's current state
func (f *LoginFlow) State() LoginState {
	return f.state
}

func (f *LoginFlow) transition(state LoginState) {
	f.state = state
	f.logger.WithField("state", state).Debug("Login state")
}

// Run executes the login. On any fatal outcome a debug artifact is saved
// before the error is returned.
func (f *LoginFlow) Run(ctx context.Context) error {
	f.transition(StateStart)

	if err := f.page.Navigate(ctx, f.portal.BaseURL); err != nil {
		f.debug.Capture(ctx, "login_navigate_failed")
		f.transition(StateFailed)
		return fmt.Errorf("%w: %v", ErrFormNotFound, err)
	}

	if err := f.page.WaitVisible(ctx, tipoSelectID, f.formTimeout); err != nil {
		f.debug.Capture(ctx, "login_form_timeout")
		f.transition(StateFailed)
		return fmt.Errorf("%w: %v", ErrFormNotFound, err)
	}
	f.transition(StateFormLoaded)

	if err := f.page.SetSelectValue(ctx, tipoSelectID, f.portal.TipoID); err != nil {
		f.logger.WithError(err).Warn("Could not set identification type")
	}
	f.enterIdentifier(ctx)
	f.transition(StateIdentifierEntered)

	f.transition(StateCaptchaPending)
	token, err := f.strategy.Resolve(ctx, captcha.Challenge{
		SiteKey: f.portal.CaptchaSiteKey,
		PageURL: f.portal.BaseURL,
	}, f.page)
	if err != nil {
		f.debug.Capture(ctx, "captcha_timeout")
		f.transition(StateFailed)
		return fmt.Errorf("%w: %v", ErrCaptchaTimeout, err)
	}
	f.transition(StateCaptchaResolved)
	if token == "" {
		f.logger.Debug("No captcha token, page presented no challenge")
	}

	// The captcha wait is long enough for the portal to log the session
	// in by itself. Submitting again would bounce back to the form.
	if f.sessionEstablished(ctx) {
		f.logger.Info("Session already established before submit")
		f.transition(StateSuccess)
		return nil
	}

	if err := f.page.Click(ctx, loginButtonID); err != nil {
		f.logger.WithError(err).Warn("Login control click failed")
	}
	f.transition(StateSubmitted)

	f.transition(StateVerifying)
	return f.verify(ctx)
}

// enterIdentifier fills the identification number through the page's own
// field events; GeneXus wires validation to them, so a bare value write is
// not enough. Falls back to per-key typing when the scripted write does
// not stick.
func (f *LoginFlow) enterIdentifier(ctx context.Context) {
	script := fmt.Sprintf(`(() => {
	const el = document.getElementById('vNROID');
	if (!el) return '';
	el.focus();
	el.value = %q;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	el.blur();
	return el.value;
})()`, f.portal.NroID)

	var got string
	if err := f.page.Evaluate(ctx, script, &got); err == nil && got == f.portal.NroID {
		return
	}

	f.logger.Debug("Scripted identifier entry did not stick, typing keys")
	if err := f.page.SendKeys(ctx, nroInputID, f.portal.NroID); err != nil {
		f.logger.WithError(err).Warn("Identifier entry failed")
	}
}

// sessionEstablished reports whether the account list is already showing
func (f *LoginFlow) sessionEstablished(ctx context.Context) bool {
	body, err := f.page.BodyText(ctx)
	if err != nil {
		return false
	}
	return strings.Contains(body, successMarker)
}

// verify polls for the post-submit outcome: the account list marker means
// success, the bot-detection phrase is a hard failure, and as a last
// resort a URL that moved off the login endpoint counts as success.
func (f *LoginFlow) verify(ctx context.Context) error {
	for attempt := 0; attempt < f.verifyAttempts; attempt++ {
		body, err := f.page.BodyText(ctx)
		if err == nil {
			if strings.Contains(body, successMarker) {
				f.logger.Info("Login confirmed")
				f.transition(StateSuccess)
				return nil
			}
			if strings.Contains(body, "Error") && strings.Contains(body, "robot") {
				f.debug.Capture(ctx, "robot_detected")
				f.transition(StateFailed)
				return ErrCaptchaRejected
			}
		}
		if err := sleep(ctx, f.verifyInterval); err != nil {
			f.transition(StateFailed)
			return fmt.Errorf("%w: %v", ErrLoginUnconfirmed, err)
		}
	}

	if url, err := f.page.CurrentURL(ctx); err == nil {
		if !strings.Contains(strings.ToLower(url), loginPathFragment) {
			f.logger.WithField("url", url).Info("Login confirmed by URL change")
			f.transition(StateSuccess)
			return nil
		}
	}

	f.debug.Capture(ctx, "login_unconfirmed")
	f.transition(StateFailed)
	return ErrLoginUnconfirmed
}
