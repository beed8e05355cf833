// Package association pairs two time-sorted capture sequences by nearest
// timestamp in a single forward pass.
package association

import (
	"math"

	"github.com/himanishpuri/rgbdassoc/pkg/models"
)

// DefaultTolerance is the max gap, in seconds, accepted between a reference
// capture and its match.
const DefaultTolerance = 0.02

// Result holds the associations of a pass together with the reference
// captures that found no candidate within tolerance.
type Result struct {
	Associations []models.Association
	Unmatched    []models.Capture
}

// Associate matches every reference capture to its closest candidate, keeping
// only pairs whose gap is strictly below tolerance. Both sequences must be
// sorted ascending by timestamp. A candidate may be matched by several
// consecutive references.
func Associate(refs, cands []models.Capture, tolerance float64) []models.Association {
	return AssociateWithResidue(refs, cands, tolerance).Associations
}

// AssociateWithResidue runs the same pass as Associate and additionally
// reports the dropped reference captures, in order.
func AssociateWithResidue(refs, cands []models.Capture, tolerance float64) Result {
	res := Result{Associations: make([]models.Association, 0, len(refs))}
	cur := NewCursor(cands)

	for _, r := range refs {
		c, _, ok := cur.Seek(r.Timestamp)
		// A NaN gap or tolerance never matches.
		if !ok || !(math.Abs(c.Timestamp-r.Timestamp) < tolerance) {
			res.Unmatched = append(res.Unmatched, r)
			continue
		}
		res.Associations = append(res.Associations, models.Association{
			RefTimestamp:   r.Timestamp,
			RefID:          r.ID,
			MatchTimestamp: c.Timestamp,
			MatchID:        c.ID,
		})
	}
	return res
}
