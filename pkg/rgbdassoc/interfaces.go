package rgbdassoc

import (
	"context"

	"github.com/himanishpuri/rgbdassoc/pkg/models"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/association"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/imagecheck"
)

type Service interface {
	Associate(ctx context.Context, datasetDir string) (*RunSummary, error)
	AssociateBatch(ctx context.Context, datasetDirs []string) ([]RunSummary, error)
	Match(refs, cands []models.Capture) association.Result
	Verify(ctx context.Context, datasetDir string, limit int) ([]imagecheck.PairReport, error)
	GetRun(id string) (*models.Run, error)
	ListRuns(limit int) ([]models.Run, error)
	DeleteRun(id string) error
	Close() error
}

// Catalog records completed runs.
type Catalog interface {
	RecordRun(run *models.Run) error
	GetRun(id string) (*models.Run, error)
	ListRuns(limit int) ([]models.Run, error)
	DeleteRun(id string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
