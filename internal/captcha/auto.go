package captcha

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Solver obtains a response token for a reCAPTCHA challenge.
type Solver interface {
	Solve(ctx context.Context, siteKey, pageURL string) (string, error)
}

// AutoStrategy resolves the challenge through an external solving service
// and injects the returned token into the page. After injection it tries
// to fire the widget's registered callback so GeneXus-style pages notice
// the resolution; that part is best effort.
type AutoStrategy struct {
	solver  Solver
	logger  *logrus.Entry
	timeout time.Duration
}

// NewAutoStrategy creates an automated strategy backed by solver
func NewAutoStrategy(solver Solver, timeout time.Duration, logger *logrus.Logger) *AutoStrategy {
	return &AutoStrategy{
		solver:  solver,
		logger:  logger.WithField("component", "captcha-auto"),
		timeout: timeout,
	}
}

const injectScriptTemplate = `(() => {
	const token = %q;
	let el = document.getElementById('` + responseFieldID + `');
	if (!el) {
		el = document.createElement('textarea');
		el.id = '` + responseFieldID + `';
		el.name = '` + responseFieldID + `';
		el.style.display = 'none';
		const host = document.forms.length ? document.forms[0] : document.body;
		host.appendChild(el);
	}
	el.value = token;
	try {
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		el.dispatchEvent(new Event('blur', { bubbles: true }));
	} catch (e) {}
	return true;
})()`

// The widget keeps its per-client configuration, including the page's
// success callback, inside window.___grecaptcha_cfg. The walk is bounded
// to depth 5; the registry nests the callback a few levels down and
// anything deeper is cyclic noise.
const callbackScriptTemplate = `(() => {
	const token = %q;
	const cfg = window.___grecaptcha_cfg;
	if (!cfg || !cfg.clients) return { invoked: false, reason: 'no client registry' };
	const seen = new Set();
	const find = (obj, depth) => {
		if (!obj || depth > 5 || typeof obj !== 'object' || seen.has(obj)) return null;
		seen.add(obj);
		for (const key of Object.keys(obj)) {
			let val;
			try { val = obj[key]; } catch (e) { continue; }
			if (key === 'callback' && typeof val === 'function') return val;
			if (val && typeof val === 'object') {
				const found = find(val, depth + 1);
				if (found) return found;
			}
		}
		return null;
	};
	for (const id of Object.keys(cfg.clients)) {
		const cb = find(cfg.clients[id], 0);
		if (cb) {
			try { cb(token); } catch (e) { return { invoked: false, reason: 'callback threw' }; }
			return { invoked: true, reason: '' };
		}
	}
	return { invoked: false, reason: 'callback not found' };
})()`

type callbackResult struct {
	Invoked bool   `json:"invoked"`
	Reason  string `json:"reason"`
}

// Resolve implements Strategy
func (a *AutoStrategy) Resolve(ctx context.Context, challenge Challenge, page Page) (string, error) {
	solveCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	pageURL := challenge.PageURL
	if pageURL == "" {
		if current, err := page.CurrentURL(ctx); err == nil {
			pageURL = current
		}
	}

	token, err := a.solver.Solve(solveCtx, challenge.SiteKey, pageURL)
	if err != nil {
		if solveCtx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("solver failed: %w", err)
	}

	if err := page.Evaluate(ctx, fmt.Sprintf(injectScriptTemplate, token), nil); err != nil {
		return "", fmt.Errorf("token injection failed: %w", err)
	}

	var cb callbackResult
	if err := page.Evaluate(ctx, fmt.Sprintf(callbackScriptTemplate, token), &cb); err != nil {
		a.logger.WithError(err).Debug("Captcha callback walk failed")
	} else if !cb.Invoked {
		a.logger.WithField("reason", cb.Reason).Debug("Captcha callback not invoked")
	}

	a.logger.Info("Captcha token injected")
	return token, nil
}
