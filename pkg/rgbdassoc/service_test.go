package rgbdassoc

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/himanishpuri/rgbdassoc/pkg/models"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/storage"
)

// recordingLogger keeps formatted messages per level.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Infof(format string, args ...any) { l.add("INFO", format, args...) }
func (l *recordingLogger) Warnf(format string, args ...any) { l.add("WARN", format, args...) }
func (l *recordingLogger) Errorf(format string, args ...any) { l.add("ERROR", format, args...) }
func (l *recordingLogger) Debugf(format string, args ...any) { l.add("DEBUG", format, args...) }

func (l *recordingLogger) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

// memCatalog is an in-memory Catalog.
type memCatalog struct {
	mu      sync.Mutex
	runs    []models.Run
	failErr error
	closed  bool
}

func (c *memCatalog) RecordRun(run *models.Run) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return c.failErr
	}
	run.ID = fmt.Sprintf("run-%d", len(c.runs)+1)
	c.runs = append(c.runs, *run)
	return nil
}

func (c *memCatalog) GetRun(id string) (*models.Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.runs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, ErrRunNotFound
}

func (c *memCatalog) ListRuns(int) ([]models.Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Run(nil), c.runs...), nil
}

func (c *memCatalog) DeleteRun(string) error { return nil }

func (c *memCatalog) Close() error {
	c.closed = true
	return nil
}

// makeDataset creates <root>/rgb and <root>/depth with the given frame names.
// When decodable is set the frames are real PNGs, otherwise empty files.
func makeDataset(t *testing.T, rgb, depth []string, decodable bool) string {
	t.Helper()
	root := t.TempDir()
	for dir, names := range map[string][]string{"rgb": rgb, "depth": depth} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
		for _, n := range names {
			path := filepath.Join(root, dir, n)
			if decodable {
				require.NoError(t, imaging.Save(imaging.New(4, 4, color.NRGBA{A: 255}), path))
				continue
			}
			require.NoError(t, os.WriteFile(path, nil, 0o644))
		}
	}
	return root
}

func newTestService(t *testing.T, opts ...Option) (Service, *memCatalog, *recordingLogger) {
	t.Helper()
	cat := &memCatalog{}
	log := &recordingLogger{}
	svc, err := NewService(append([]Option{WithCatalog(cat), WithLogger(log)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, cat, log
}

func TestNewServiceRejectsNegativeTolerance(t *testing.T) {
	_, err := NewService(WithoutCatalog(), WithTolerance(-0.1))
	assert.Error(t, err)
}

func TestNewServiceWithSQLiteCatalog(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.sqlite3")
	svc, err := NewService(WithDBPath(dbPath), WithLogger(&recordingLogger{}))
	require.NoError(t, err)
	defer svc.Close()

	root := makeDataset(t, []string{"1.000000.png"}, []string{"1.005000.png"}, false)
	sum, err := svc.Associate(context.Background(), root)
	require.NoError(t, err)

	got, err := svc.GetRun(sum.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Matched)

	runs, err := svc.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	require.NoError(t, svc.DeleteRun(sum.Run.ID))
	_, err = svc.GetRun(sum.Run.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestAssociate(t *testing.T) {
	root := makeDataset(t,
		[]string{"1305031102.175304.png", "1305031102.211214.png", "1305031102.275326.png", "readme.png"},
		[]string{"1305031102.160407.png", "1305031102.226738.png", "1305031102.362740.png"},
		false,
	)
	svc, cat, log := newTestService(t)

	sum, err := svc.Associate(context.Background(), root)
	require.NoError(t, err)

	want := "1305031102.175304 rgb/1305031102.175304.png 1305031102.160407 depth/1305031102.160407.png\n" +
		"1305031102.211214 rgb/1305031102.211214.png 1305031102.226738 depth/1305031102.226738.png\n"
	data, err := os.ReadFile(filepath.Join(root, "associate.txt"))
	require.NoError(t, err)
	assert.Equal(t, want, string(data))

	assert.Equal(t, 3, sum.Run.RefCount)
	assert.Equal(t, 3, sum.Run.CandCount)
	assert.Equal(t, 2, sum.Run.Matched)
	assert.Equal(t, 1, sum.Run.Unmatched)
	assert.Equal(t, "rgb/1305031102.275326.png", sum.Unmatched[0].ID)
	assert.Equal(t, 2, sum.Stats.Count)
	assert.Less(t, sum.Run.MaxGapMs, 20.0)

	require.Len(t, cat.runs, 1)
	assert.Equal(t, "run-1", sum.Run.ID)
	assert.True(t, log.contains("Written 2 associations to"))
}

func TestAssociateCustomLayout(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "color"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "aligned_depth"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "color", "10.000.jpg"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "aligned_depth", "10.040.jpg"), nil, 0o644))

	svc, _, _ := newTestService(t,
		WithRGBDir("color"),
		WithDepthDir("aligned_depth"),
		WithExtensions(".jpg"),
		WithTolerance(0.05),
		WithOutputName("pairs.txt"),
	)

	sum, err := svc.Associate(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "pairs.txt"), sum.Run.OutputPath)
	data, err := os.ReadFile(sum.Run.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "10.000000 color/10.000.jpg 10.040000 aligned_depth/10.040.jpg\n", string(data))
}

func TestAssociateEmptyDepthWritesEmptyFile(t *testing.T) {
	root := makeDataset(t, []string{"1.0.png", "2.0.png"}, nil, false)
	svc, _, _ := newTestService(t)

	sum, err := svc.Associate(context.Background(), root)
	require.NoError(t, err)

	assert.Zero(t, sum.Run.Matched)
	assert.Equal(t, 2, sum.Run.Unmatched)
	data, err := os.ReadFile(sum.Run.OutputPath)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestAssociateMissingStream(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "rgb"), 0o755))
	svc, cat, _ := newTestService(t)

	_, err := svc.Associate(context.Background(), root)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, cat.runs)
}

func TestAssociateMissingDataset(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Associate(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAssociateCancelled(t *testing.T) {
	root := makeDataset(t, []string{"1.0.png"}, []string{"1.0.png"}, false)
	svc, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Associate(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(filepath.Join(root, "associate.txt"))
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestAssociateCatalogFailureIsNotFatal(t *testing.T) {
	root := makeDataset(t, []string{"1.0.png"}, []string{"1.001.png"}, false)
	svc, cat, log := newTestService(t)
	cat.failErr = errors.New("database is locked")

	sum, err := svc.Associate(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Run.Matched)
	assert.True(t, log.contains("database is locked"))
}

func TestMatchSortsUnsortedInput(t *testing.T) {
	svc, _, log := newTestService(t)
	refs := []models.Capture{{Timestamp: 2.0, ID: "r1"}, {Timestamp: 1.0, ID: "r0"}}
	cands := []models.Capture{{Timestamp: 1.001, ID: "c0"}, {Timestamp: 2.001, ID: "c1"}}

	res := svc.Match(refs, cands)

	require.Len(t, res.Associations, 2)
	assert.Equal(t, "r0", res.Associations[0].RefID)
	assert.Equal(t, "c0", res.Associations[0].MatchID)
	assert.Equal(t, "r1", res.Associations[1].RefID)
	assert.Equal(t, "c1", res.Associations[1].MatchID)
	assert.True(t, log.contains("rgb captures are not in timestamp order"))
	// caller's slice is untouched
	assert.Equal(t, "r1", refs[0].ID)
}

func TestAssociateBatch(t *testing.T) {
	good1 := makeDataset(t, []string{"1.0.png"}, []string{"1.01.png"}, false)
	good2 := makeDataset(t, []string{"5.0.png", "6.0.png"}, []string{"5.005.png", "6.005.png"}, false)
	missing := filepath.Join(t.TempDir(), "missing")
	svc, cat, _ := newTestService(t, WithWorkers(2))

	sums, err := svc.AssociateBatch(context.Background(), []string{good1, missing, good2})
	require.Error(t, err)

	assert.Len(t, multierr.Errors(err), 1)
	assert.Contains(t, err.Error(), missing)
	require.Len(t, sums, 2)
	assert.Equal(t, good1, sums[0].Run.DatasetDir)
	assert.Equal(t, good2, sums[1].Run.DatasetDir)
	assert.Equal(t, 2, sums[1].Run.Matched)
	assert.Len(t, cat.runs, 2)
}

func TestVerify(t *testing.T) {
	root := makeDataset(t,
		[]string{"1.000.png", "2.000.png"},
		[]string{"1.004.png", "2.004.png"},
		true,
	)
	svc, _, _ := newTestService(t, WithWorkers(2))
	_, err := svc.Associate(context.Background(), root)
	require.NoError(t, err)

	reports, err := svc.Verify(context.Background(), root, 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 4, reports[1].Match.Width)

	require.NoError(t, os.Remove(filepath.Join(root, "depth", "2.004.png")))
	_, err = svc.Verify(context.Background(), root, 0)
	assert.Error(t, err)

	reports, err = svc.Verify(context.Background(), root, 1)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestVerifyWithoutAssociationFile(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Verify(context.Background(), t.TempDir(), 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWithoutCatalog(t *testing.T) {
	svc, err := NewService(WithoutCatalog(), WithLogger(&recordingLogger{}))
	require.NoError(t, err)
	defer svc.Close()

	root := makeDataset(t, []string{"1.0.png"}, []string{"1.0.png"}, false)
	sum, err := svc.Associate(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, sum.Run.ID)

	_, err = svc.ListRuns(0)
	assert.ErrorIs(t, err, ErrCatalogDisabled)
}

func TestAssociateBatchRejectsSharedOutputFile(t *testing.T) {
	first := makeDataset(t, []string{"1.000.png"}, []string{"1.005.png"}, false)
	second := makeDataset(t, []string{"7.000.png"}, []string{"7.005.png"}, false)
	out := filepath.Join(t.TempDir(), "pairs.txt")
	svc, cat, _ := newTestService(t, WithOutputName(out), WithWorkers(2))

	sums, err := svc.AssociateBatch(context.Background(), []string{first, second})
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrOutputCollision)
	assert.Empty(t, sums)
	assert.Empty(t, cat.runs)
	_, statErr := os.Stat(out)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestAssociateBatchRejectsRepeatedDataset(t *testing.T) {
	root := makeDataset(t, []string{"1.000.png"}, []string{"1.005.png"}, false)
	svc, _, _ := newTestService(t)

	_, err := svc.AssociateBatch(context.Background(), []string{root, filepath.Join(root, ".")})
	assert.ErrorIs(t, err, ErrOutputCollision)
}

func TestAssociateBatchSingleDatasetWithAbsoluteOutput(t *testing.T) {
	root := makeDataset(t, []string{"1.000.png"}, []string{"1.005.png"}, false)
	out := filepath.Join(t.TempDir(), "pairs.txt")
	svc, _, _ := newTestService(t, WithOutputName(out))

	sums, err := svc.AssociateBatch(context.Background(), []string{root})
	require.NoError(t, err)

	require.Len(t, sums, 1)
	assert.Equal(t, out, sums[0].Run.OutputPath)
}

func TestNewSQLiteCatalog(t *testing.T) {
	assert.Equal(t, storage.DefaultDBFile, defaultConfig().DBPath)

	dbPath := filepath.Join(t.TempDir(), "nested", storage.DefaultDBFile)
	catalog, err := NewSQLiteCatalog(dbPath)
	require.NoError(t, err)
	defer catalog.Close()

	require.NoError(t, catalog.RecordRun(&models.Run{DatasetDir: "fr1_desk", Tolerance: 0.02}))
	runs, err := catalog.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "fr1_desk", runs[0].DatasetDir)

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}
