package association

import (
	"github.com/montanaflynn/stats"
	"github.com/samber/lo"

	"github.com/himanishpuri/rgbdassoc/pkg/models"
)

// Summarize computes gap statistics over a set of associations.
func Summarize(assocs []models.Association) models.GapStats {
	if len(assocs) == 0 {
		return models.GapStats{}
	}
	gaps := stats.Float64Data(lo.Map(assocs, func(a models.Association, _ int) float64 {
		return a.Gap()
	}))

	// stats only errors on empty input, which is handled above.
	mean, _ := gaps.Mean()
	maxGap, _ := gaps.Max()
	p95, _ := gaps.Percentile(95)

	return models.GapStats{
		Count: len(assocs),
		Mean:  mean,
		Max:   maxGap,
		P95:   p95,
	}
}
