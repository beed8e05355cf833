package association

import (
	"math"

	"github.com/himanishpuri/rgbdassoc/pkg/models"
)

// Cursor walks a time-sorted candidate sequence towards successive reference
// timestamps. Its position never moves backwards.
type Cursor struct {
	cands []models.Capture
	pos   int
}

// NewCursor returns a cursor positioned on the first candidate.
func NewCursor(cands []models.Capture) *Cursor {
	return &Cursor{cands: cands}
}

// Pos returns the current index into the candidate sequence.
func (c *Cursor) Pos() int {
	return c.pos
}

// Seek advances the cursor while the next candidate is strictly closer to t
// and returns the candidate it settles on. On equal distances the earlier
// candidate is kept. ok is false when there are no candidates at all.
func (c *Cursor) Seek(t float64) (cand models.Capture, idx int, ok bool) {
	if len(c.cands) == 0 {
		return models.Capture{}, 0, false
	}
	for c.pos+1 < len(c.cands) &&
		math.Abs(c.cands[c.pos+1].Timestamp-t) < math.Abs(c.cands[c.pos].Timestamp-t) {
		c.pos++
	}
	return c.cands[c.pos], c.pos, true
}
