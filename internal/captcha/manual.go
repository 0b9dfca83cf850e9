package captcha

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ManualStrategy waits for a human operator to solve the captcha in the
// visible browser window. It polls the hidden response field until a token
// shows up or the budget runs out. When the page never rendered a captcha
// at all (field absent) the wait succeeds immediately with no token.
type ManualStrategy struct {
	logger *logrus.Entry

	timeout      time.Duration
	pollInterval time.Duration
	noticeAfter  time.Duration
}

// NewManualStrategy creates a manual-wait strategy with the given total
// budget
func NewManualStrategy(timeout time.Duration, logger *logrus.Logger) *ManualStrategy {
	return &ManualStrategy{
		logger:       logger.WithField("component", "captcha-manual"),
		timeout:      timeout,
		pollInterval: 2 * time.Second,
		noticeAfter:  5 * time.Second,
	}
}

// fieldState is what the probe script reports about the response field.
type fieldState struct {
	Present bool   `json:"present"`
	Value   string `json:"value"`
}

const probeScript = `(() => {
	const el = document.getElementById('` + responseFieldID + `');
	if (!el) return { present: false, value: '' };
	return { present: true, value: el.value || '' };
})()`

// Resolve implements Strategy
func (m *ManualStrategy) Resolve(ctx context.Context, challenge Challenge, page Page) (string, error) {
	start := time.Now()
	deadline := start.Add(m.timeout)
	notified := false

	for time.Now().Before(deadline) {
		var state fieldState
		if err := page.Evaluate(ctx, probeScript, &state); err != nil {
			m.logger.WithError(err).Debug("Captcha field probe failed")
		} else {
			if !state.Present {
				// No widget on the page, nothing to solve
				m.logger.Debug("Captcha field absent, continuing without token")
				return "", nil
			}
			if len(state.Value) > minTokenLength {
				m.logger.WithField("elapsed", time.Since(start).Round(time.Second)).
					Info("Captcha solved by operator")
				return state.Value, nil
			}
		}

		if !notified && time.Since(start) >= m.noticeAfter {
			m.logger.Warn("Waiting for the captcha to be solved in the browser window")
			notified = true
		}

		if err := sleep(ctx, m.pollInterval); err != nil {
			return "", fmt.Errorf("captcha wait interrupted: %w", err)
		}
	}

	return "", fmt.Errorf("%w after %s", ErrTimeout, m.timeout)
}
