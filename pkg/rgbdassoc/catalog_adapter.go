package rgbdassoc

import (
	"errors"

	"github.com/himanishpuri/rgbdassoc/pkg/models"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/storage"
)

// ErrCatalogDisabled is returned by run queries when the service was built
// without a catalog.
var ErrCatalogDisabled = errors.New("run catalog disabled")

// ErrRunNotFound is returned when no recorded run has the requested ID.
var ErrRunNotFound = storage.ErrRunNotFound

// NewSQLiteCatalog opens (or creates) the sqlite run catalog at dbPath.
func NewSQLiteCatalog(dbPath string) (Catalog, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// noCatalog drops run records and refuses queries.
type noCatalog struct{}

func (noCatalog) RecordRun(*models.Run) error { return nil }

func (noCatalog) GetRun(string) (*models.Run, error) { return nil, ErrCatalogDisabled }

func (noCatalog) ListRuns(int) ([]models.Run, error) { return nil, ErrCatalogDisabled }

func (noCatalog) DeleteRun(string) error { return ErrCatalogDisabled }

func (noCatalog) Close() error { return nil }
