// Package imagecheck confirms that the frames named by associations exist
// and decode.
package imagecheck

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/rgbdassoc/pkg/models"
)

// DefaultWorkers bounds concurrent decodes in CheckAll.
const DefaultWorkers = 4

// FrameInfo describes one decoded frame.
type FrameInfo struct {
	Path   string
	Width  int
	Height int
}

// PairReport holds the decoded reference and matched frames of one
// association.
type PairReport struct {
	Association models.Association
	Ref         FrameInfo
	Match       FrameInfo
}

// Check decodes both frames of a, resolving IDs against root.
func Check(root string, a models.Association) (PairReport, error) {
	ref, err := decode(root, a.RefID)
	if err != nil {
		return PairReport{}, err
	}
	match, err := decode(root, a.MatchID)
	if err != nil {
		return PairReport{}, err
	}
	return PairReport{Association: a, Ref: ref, Match: match}, nil
}

// CheckAll checks up to limit associations (all when limit <= 0) using at most
// workers concurrent decodes. Reports of successful pairs are returned in
// input order; failed pairs leave a zero report and every failure is
// included in the returned error.
func CheckAll(ctx context.Context, root string, assocs []models.Association, limit, workers int) ([]PairReport, error) {
	if limit > 0 && limit < len(assocs) {
		assocs = assocs[:limit]
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	reports := make([]PairReport, len(assocs))
	errs := make([]error, len(assocs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, a := range assocs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			reports[i], errs[i] = Check(root, a)
			return nil
		})
	}
	// Workers record their own failures; Wait only joins them.
	_ = g.Wait()

	return reports, multierr.Combine(errs...)
}

func decode(root, id string) (FrameInfo, error) {
	path := filepath.Join(root, filepath.FromSlash(id))
	img, err := imaging.Open(path)
	if err != nil {
		return FrameInfo{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return frameInfo(path, img.Bounds()), nil
}

func frameInfo(path string, b image.Rectangle) FrameInfo {
	return FrameInfo{Path: path, Width: b.Dx(), Height: b.Dy()}
}
