package scraper

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/calfsync/calf-scraper/internal/browser"
	"github.com/calfsync/calf-scraper/internal/captcha"
	"github.com/calfsync/calf-scraper/internal/config"
	"github.com/calfsync/calf-scraper/internal/models"
)

// Scraper runs the whole pipeline over one browser session: login, person
// header, account list, then each account's detail in order. Single
// session, single thread; the browser is torn down no matter how the run
// ends.
type Scraper struct {
	cfg      *config.Config
	logger   *logrus.Logger
	session  *browser.Session
	debug    *browser.ArtifactStore
	strategy captcha.Strategy
}

// New wires a scraper from configuration
func New(cfg *config.Config, logger *logrus.Logger) *Scraper {
	session := browser.NewSession(cfg.Browser, logger)
	return &Scraper{
		cfg:      cfg,
		logger:   logger,
		session:  session,
		debug:    browser.NewArtifactStore(cfg.Debug.Dir, session, logger),
		strategy: buildStrategy(cfg, logger),
	}
}

// buildStrategy picks the captcha strategy: the external solver when it is
// configured and not overridden, the operator wait otherwise.
func buildStrategy(cfg *config.Config, logger *logrus.Logger) captcha.Strategy {
	c := cfg.Captcha
	if !c.ForceManual && c.SolverAPIKey != "" && cfg.Portal.CaptchaSiteKey != "" {
		solver := captcha.NewSolverClient(c.SolverBaseURL, c.SolverAPIKey, c.PollInterval, logger)
		return captcha.NewAutoStrategy(solver, c.Timeout, logger)
	}
	return captcha.NewManualStrategy(c.Timeout, logger)
}

// Run executes the pipeline and returns the person with all extracted
// accounts
func (s *Scraper) Run(ctx context.Context) (*models.PersonRecord, error) {
	if err := s.session.Start(ctx); err != nil {
		return nil, fmt.Errorf("browser start: %w", err)
	}
	defer s.session.Close()

	person, err := s.collect(ctx, s.session, s.debug)
	if err != nil {
		s.debug.Capture(ctx, "error_general")
		return nil, err
	}
	return person, nil
}

// collect is the pipeline proper, expressed against the page abstraction
func (s *Scraper) collect(ctx context.Context, page Page, debug DebugSink) (*models.PersonRecord, error) {
	login := NewLoginFlow(s.cfg.Portal, page, s.strategy, debug, s.logger)
	if err := login.Run(ctx); err != nil {
		return nil, err
	}

	person := &models.PersonRecord{
		TipoID: s.cfg.Portal.TipoID,
		NroID:  s.cfg.Portal.NroID,
	}
	if body, err := page.BodyText(ctx); err == nil {
		person.Usuario, person.PersonaID, person.Nombre = extractPersonHeader(body)
	}

	extractor := NewAccountListExtractor(s.logger)
	person.Cuentas = extractor.Extract(ctx, page)
	s.logger.WithField("cuentas", len(person.Cuentas)).Info("Account list extracted")

	navigator := NewDetailNavigator(
		NewDetailParser(s.logger),
		debug,
		s.cfg.Portal.SettleDelay,
		s.cfg.Portal.ReturnDelay,
		s.logger,
	)
	for i := range person.Cuentas {
		person.Cuentas[i].Detalle = navigator.Open(ctx, page, person.Cuentas[i], i)
	}

	return person, nil
}
