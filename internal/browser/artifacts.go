package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ArtifactStore persists page snapshots (screenshot plus markup) for
// post-mortem inspection of failed runs. Capture never fails the caller;
// a snapshot that cannot be taken is only logged.
type ArtifactStore struct {
	dir     string
	session *Session
	logger  *logrus.Entry
}

// NewArtifactStore creates a store writing into dir
func NewArtifactStore(dir string, session *Session, logger *logrus.Logger) *ArtifactStore {
	return &ArtifactStore{
		dir:     dir,
		session: session,
		logger:  logger.WithField("component", "artifacts"),
	}
}

// Capture writes <label>_<timestamp>_<id>.png and .html into the store
// directory
func (a *ArtifactStore) Capture(ctx context.Context, label string) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		a.logger.WithError(err).Warn("Could not create debug directory")
		return nil
	}

	stem := fmt.Sprintf("%s_%s_%s",
		label,
		time.Now().Format("20060102_150405"),
		uuid.NewString()[:8],
	)

	if png, err := a.session.Screenshot(ctx); err != nil {
		a.logger.WithError(err).WithField("label", label).Warn("Screenshot capture failed")
	} else if err := os.WriteFile(filepath.Join(a.dir, stem+".png"), png, 0o644); err != nil {
		a.logger.WithError(err).Warn("Could not write screenshot artifact")
	}

	if html, err := a.session.HTML(ctx); err != nil {
		a.logger.WithError(err).WithField("label", label).Warn("Page source capture failed")
	} else if err := os.WriteFile(filepath.Join(a.dir, stem+".html"), []byte(html), 0o644); err != nil {
		a.logger.WithError(err).Warn("Could not write page source artifact")
	}

	a.logger.WithField("artifact", stem).Debug("Debug artifact saved")
	return nil
}
