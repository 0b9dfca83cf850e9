package scraper

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakePage is a scripted Page for tests. Behavior hooks default to benign
// no-ops so each test only scripts what it cares about.
type fakePage struct {
	navigations []string
	clicks      []string
	typed       map[string]string
	selected    map[string]string
	evalExprs   []string
	bodyCalls   int
	backCalls   int

	waitErr  map[string]error
	clickErr map[string]error
	clickFn  func(selector string)
	evalFn   func(expr string, out interface{}) error
	htmlFn   func() string
	bodyFn   func() string
	urlFn    func() string
	backFn   func()
}

func newFakePage() *fakePage {
	return &fakePage{
		typed:    map[string]string{},
		selected: map[string]string{},
		waitErr:  map[string]error{},
		clickErr: map[string]error{},
	}
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigations = append(p.navigations, url)
	return nil
}

func (p *fakePage) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	return p.waitErr[selector]
}

func (p *fakePage) Click(_ context.Context, selector string) error {
	if err := p.clickErr[selector]; err != nil {
		return err
	}
	p.clicks = append(p.clicks, selector)
	if p.clickFn != nil {
		p.clickFn(selector)
	}
	return nil
}

func (p *fakePage) SendKeys(_ context.Context, selector, value string) error {
	p.typed[selector] = value
	return nil
}

func (p *fakePage) SetSelectValue(_ context.Context, selector, value string) error {
	p.selected[selector] = value
	return nil
}

func (p *fakePage) Evaluate(_ context.Context, expr string, out interface{}) error {
	p.evalExprs = append(p.evalExprs, expr)
	if p.evalFn != nil {
		return p.evalFn(expr, out)
	}
	return nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	if p.htmlFn != nil {
		return p.htmlFn(), nil
	}
	return "", nil
}

func (p *fakePage) BodyText(context.Context) (string, error) {
	p.bodyCalls++
	if p.bodyFn != nil {
		return p.bodyFn(), nil
	}
	return "", nil
}

func (p *fakePage) CurrentURL(context.Context) (string, error) {
	if p.urlFn != nil {
		return p.urlFn(), nil
	}
	return "https://portal.example/portalloginsinregistro", nil
}

func (p *fakePage) Back(context.Context) error {
	p.backCalls++
	if p.backFn != nil {
		p.backFn()
	}
	return nil
}

// fakeSink records requested artifact labels.
type fakeSink struct {
	labels []string
}

func (s *fakeSink) Capture(_ context.Context, label string) error {
	s.labels = append(s.labels, label)
	return nil
}

func (s *fakeSink) has(label string) bool {
	for _, l := range s.labels {
		if l == label {
			return true
		}
	}
	return false
}
