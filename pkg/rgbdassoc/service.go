package rgbdassoc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/rgbdassoc/pkg/logger"
	"github.com/himanishpuri/rgbdassoc/pkg/models"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/association"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/assocfile"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/capture"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/imagecheck"
	"github.com/himanishpuri/rgbdassoc/pkg/utils"
)

// ErrOutputCollision is returned by AssociateBatch when several datasets
// would write the same association file.
var ErrOutputCollision = errors.New("datasets share an association file")

// assocService is the default implementation of the Service interface.
type assocService struct {
	catalog Catalog
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if math.IsNaN(cfg.Tolerance) || cfg.Tolerance < 0 {
		return nil, fmt.Errorf("invalid tolerance %v: must be >= 0", cfg.Tolerance)
	}
	if cfg.RGBDir == "" || cfg.DepthDir == "" {
		return nil, errors.New("rgb and depth folders must be set")
	}
	if cfg.OutputName == "" {
		cfg.OutputName = assocfile.DefaultFileName
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	// Set default logger if none provided
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	var catalog Catalog
	switch {
	case cfg.Catalog != nil:
		catalog = cfg.Catalog
	case cfg.DisableCatalog:
		catalog = noCatalog{}
	default:
		var err error
		catalog, err = NewSQLiteCatalog(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open run catalog: %w", err)
		}
	}

	return &assocService{
		catalog: catalog,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// Associate pairs the rgb and depth frames of one dataset folder and writes
// the association file into it.
func (s *assocService) Associate(ctx context.Context, datasetDir string) (*RunSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := utils.RequireDir(datasetDir); err != nil {
		return nil, fmt.Errorf("dataset folder: %w", err)
	}
	s.log.Infof("Associating dataset: %s", datasetDir)

	// 1. Scan both streams
	refs, err := capture.Scan(filepath.Join(datasetDir, s.config.RGBDir), s.config.RGBDir, s.config.Extensions)
	if err != nil {
		return nil, fmt.Errorf("scanning rgb frames: %w", err)
	}
	cands, err := capture.Scan(filepath.Join(datasetDir, s.config.DepthDir), s.config.DepthDir, s.config.Extensions)
	if err != nil {
		return nil, fmt.Errorf("scanning depth frames: %w", err)
	}
	s.log.Infof("Found %d rgb and %d depth frames", len(refs), len(cands))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Match
	res := s.Match(refs, cands)
	stats := association.Summarize(res.Associations)
	if len(res.Unmatched) > 0 {
		s.log.Debugf("%d rgb frames had no depth frame within %.3fs", len(res.Unmatched), s.config.Tolerance)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Write the association file
	outPath := s.outputPath(datasetDir)
	n, err := assocfile.WriteFile(outPath, res.Associations)
	if err != nil {
		return nil, fmt.Errorf("writing associations: %w", err)
	}
	s.log.Infof("Written %d associations to %s", n, outPath)

	// 4. Record the run
	run := models.Run{
		DatasetDir: datasetDir,
		RefDir:     s.config.RGBDir,
		CandDir:    s.config.DepthDir,
		OutputPath: outPath,
		Tolerance:  s.config.Tolerance,
		RefCount:   len(refs),
		CandCount:  len(cands),
		Matched:    n,
		Unmatched:  len(res.Unmatched),
		MeanGapMs:  stats.MeanMs(),
		MaxGapMs:   stats.MaxMs(),
	}
	if err := s.catalog.RecordRun(&run); err != nil {
		// The association file is already in place; the run is still usable.
		s.log.Warnf("Failed to record run for %s: %v", datasetDir, err)
	}

	return &RunSummary{
		Run:          run,
		Stats:        stats,
		Associations: res.Associations,
		Unmatched:    res.Unmatched,
	}, nil
}

// AssociateBatch associates every dataset folder independently, running up
// to Config.Workers at a time. Summaries of successful datasets are returned
// in input order alongside the combined errors of the failed ones.
func (s *assocService) AssociateBatch(ctx context.Context, datasetDirs []string) ([]RunSummary, error) {
	if err := s.checkDistinctOutputs(datasetDirs); err != nil {
		return nil, err
	}

	summaries := make([]*RunSummary, len(datasetDirs))
	errs := make([]error, len(datasetDirs))

	var g errgroup.Group
	g.SetLimit(s.config.Workers)
	for i, dir := range datasetDirs {
		g.Go(func() error {
			sum, err := s.Associate(ctx, dir)
			if err != nil {
				s.log.Errorf("Dataset %s failed: %v", dir, err)
				errs[i] = fmt.Errorf("dataset %s: %w", dir, err)
				return nil
			}
			summaries[i] = sum
			return nil
		})
	}
	_ = g.Wait()

	out := make([]RunSummary, 0, len(datasetDirs))
	for _, sum := range summaries {
		if sum != nil {
			out = append(out, *sum)
		}
	}
	s.log.Infof("Batch complete: %d/%d datasets associated", len(out), len(datasetDirs))
	return out, multierr.Combine(errs...)
}

// checkDistinctOutputs fails when two datasets of a batch would write the
// same association file, e.g. with an absolute output path.
func (s *assocService) checkDistinctOutputs(datasetDirs []string) error {
	owners := make(map[string]string, len(datasetDirs))
	for _, dir := range datasetDirs {
		out, err := filepath.Abs(s.outputPath(dir))
		if err != nil {
			return fmt.Errorf("resolving output of %s: %w", dir, err)
		}
		if prev, ok := owners[out]; ok {
			return fmt.Errorf("%w: %s and %s both write %s", ErrOutputCollision, prev, dir, out)
		}
		owners[out] = dir
	}
	return nil
}

// Match associates two capture sequences. Sequences that are not sorted by
// timestamp are sorted first rather than mismatched.
func (s *assocService) Match(refs, cands []models.Capture) association.Result {
	refs = s.ensureSorted("rgb", refs)
	cands = s.ensureSorted("depth", cands)
	return association.AssociateWithResidue(refs, cands, s.config.Tolerance)
}

func (s *assocService) ensureSorted(stream string, seq []models.Capture) []models.Capture {
	if association.IsSorted(seq) {
		return seq
	}
	s.log.Warnf("%s captures are not in timestamp order; sorting", stream)
	return association.Sort(seq)
}

// Verify reads back the association file of a dataset and decodes the frames
// of up to limit pairs (all when limit <= 0).
func (s *assocService) Verify(ctx context.Context, datasetDir string, limit int) ([]imagecheck.PairReport, error) {
	path := s.outputPath(datasetDir)
	assocs, err := assocfile.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Verifying %d associations from %s", len(assocs), path)

	reports, err := imagecheck.CheckAll(ctx, datasetDir, assocs, limit, s.config.Workers)
	if err != nil {
		return reports, fmt.Errorf("verifying %s: %w", path, err)
	}
	return reports, nil
}

func (s *assocService) outputPath(datasetDir string) string {
	if filepath.IsAbs(s.config.OutputName) {
		return s.config.OutputName
	}
	return filepath.Join(datasetDir, s.config.OutputName)
}

// GetRun retrieves a recorded run by its ID.
func (s *assocService) GetRun(id string) (*models.Run, error) {
	return s.catalog.GetRun(id)
}

// ListRuns returns recorded runs, newest first.
func (s *assocService) ListRuns(limit int) ([]models.Run, error) {
	return s.catalog.ListRuns(limit)
}

// DeleteRun removes a run record. The association file is left in place.
func (s *assocService) DeleteRun(id string) error {
	return s.catalog.DeleteRun(id)
}

// Close releases all resources held by the service.
func (s *assocService) Close() error {
	return s.catalog.Close()
}
