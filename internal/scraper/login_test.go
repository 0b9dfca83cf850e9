package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calfsync/calf-scraper/internal/captcha"
	"github.com/calfsync/calf-scraper/internal/config"
)

type fakeStrategy struct {
	token     string
	err       error
	challenge captcha.Challenge
	calls     int
}

func (s *fakeStrategy) Resolve(_ context.Context, challenge captcha.Challenge, _ captcha.Page) (string, error) {
	s.calls++
	s.challenge = challenge
	return s.token, s.err
}

func testPortalConfig() config.PortalConfig {
	return config.PortalConfig{
		BaseURL:        "https://portal.example/portalloginsinregistro",
		TipoID:         "4",
		NroID:          "12345",
		CaptchaSiteKey: "site-key",
		FormTimeout:    50 * time.Millisecond,
		VerifyAttempts: 3,
		VerifyInterval: time.Millisecond,
	}
}

// scriptedEntry makes the scripted identifier write succeed.
func scriptedEntry(nro string) func(expr string, out interface{}) error {
	return func(expr string, out interface{}) error {
		if strings.Contains(expr, "vNROID") {
			if s, ok := out.(*string); ok {
				*s = nro
			}
		}
		return nil
	}
}

func TestLoginSucceedsWhenMarkerAppears(t *testing.T) {
	page := newFakePage()
	page.evalFn = scriptedEntry("12345")
	submitted := false
	page.bodyFn = func() string {
		if submitted {
			return "Bienvenido\nCuentas de la persona\n"
		}
		return "Ingrese sus datos"
	}

	// The fake flips to the logged-in page when LOGIN is clicked.
	page.clickFn = func(selector string) {
		if selector == loginButtonID {
			submitted = true
		}
	}

	strategy := &fakeStrategy{token: "tok-1234567890"}
	sink := &fakeSink{}
	flow := NewLoginFlow(testPortalConfig(), page, strategy, sink, newTestLogger())

	err := flow.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, flow.State())
	assert.Equal(t, "4", page.selected[tipoSelectID])
	assert.Equal(t, 1, strategy.calls)
	assert.Equal(t, "site-key", strategy.challenge.SiteKey)
	assert.Contains(t, page.clicks, loginButtonID)
	assert.Empty(t, sink.labels)
}

func TestLoginSkipsSubmitWhenAlreadyAuthenticated(t *testing.T) {
	page := newFakePage()
	page.evalFn = scriptedEntry("12345")
	page.bodyFn = func() string {
		return "Cuentas de la persona"
	}

	flow := NewLoginFlow(testPortalConfig(), page, &fakeStrategy{token: "tok-1234567890"}, nil, newTestLogger())
	err := flow.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateSuccess, flow.State())
	assert.NotContains(t, page.clicks, loginButtonID)
}

func TestLoginRobotDetectionIsFatal(t *testing.T) {
	page := newFakePage()
	page.evalFn = scriptedEntry("12345")
	page.bodyFn = func() string {
		return "Error: el sistema detectó que usted puede ser un robot"
	}
	// No marker before submit either, so the pre-submit check must not
	// trip on the robot page.
	sink := &fakeSink{}

	flow := NewLoginFlow(testPortalConfig(), page, &fakeStrategy{token: "tok-1234567890"}, sink, newTestLogger())
	err := flow.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCaptchaRejected))
	assert.Equal(t, StateFailed, flow.State())
	assert.True(t, sink.has("robot_detected"))
}

func TestLoginFormTimeoutIsFatal(t *testing.T) {
	page := newFakePage()
	page.waitErr[tipoSelectID] = errors.New("timeout waiting for selector")
	sink := &fakeSink{}

	flow := NewLoginFlow(testPortalConfig(), page, &fakeStrategy{}, sink, newTestLogger())
	err := flow.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormNotFound))
	assert.True(t, sink.has("login_form_timeout"))
}

func TestLoginCaptchaFailureIsFatal(t *testing.T) {
	page := newFakePage()
	page.evalFn = scriptedEntry("12345")
	sink := &fakeSink{}

	flow := NewLoginFlow(testPortalConfig(), page, &fakeStrategy{err: captcha.ErrTimeout}, sink, newTestLogger())
	err := flow.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCaptchaTimeout))
	assert.True(t, sink.has("captcha_timeout"))
}

func TestLoginConfirmedByURLChange(t *testing.T) {
	page := newFakePage()
	page.evalFn = scriptedEntry("12345")
	page.bodyFn = func() string { return "página intermedia sin marcador" }
	page.urlFn = func() string { return "https://portal.example/com.portalclientes.cuentas" }

	flow := NewLoginFlow(testPortalConfig(), page, &fakeStrategy{token: "tok-1234567890"}, nil, newTestLogger())
	err := flow.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateSuccess, flow.State())
}

func TestLoginUnconfirmedWhenNothingChanges(t *testing.T) {
	page := newFakePage()
	page.evalFn = scriptedEntry("12345")
	page.bodyFn = func() string { return "Ingrese sus datos" }
	sink := &fakeSink{}

	flow := NewLoginFlow(testPortalConfig(), page, &fakeStrategy{token: "tok-1234567890"}, sink, newTestLogger())
	err := flow.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoginUnconfirmed))
	assert.True(t, sink.has("login_unconfirmed"))
}

func TestLoginFallsBackToTypingIdentifier(t *testing.T) {
	page := newFakePage()
	// Scripted write never sticks
	page.evalFn = func(expr string, out interface{}) error { return nil }
	page.bodyFn = func() string { return "Cuentas de la persona" }

	flow := NewLoginFlow(testPortalConfig(), page, &fakeStrategy{token: "tok-1234567890"}, nil, newTestLogger())
	require.NoError(t, flow.Run(context.Background()))

	assert.Equal(t, "12345", page.typed[nroInputID])
}
