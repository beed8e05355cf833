package association

import (
	"slices"

	"github.com/himanishpuri/rgbdassoc/pkg/models"
)

// IsSorted reports whether seq is ascending by timestamp. Equal timestamps
// are allowed.
func IsSorted(seq []models.Capture) bool {
	for i := 1; i < len(seq); i++ {
		if seq[i].Timestamp < seq[i-1].Timestamp {
			return false
		}
	}
	return true
}

// Sort returns a copy of seq stably sorted ascending by timestamp.
func Sort(seq []models.Capture) []models.Capture {
	out := slices.Clone(seq)
	slices.SortStableFunc(out, func(a, b models.Capture) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	return out
}
