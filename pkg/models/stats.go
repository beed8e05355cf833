package models

// GapStats summarizes the timestamp gaps of a set of associations.
// All values are in seconds; they are zero when Count is zero.
type GapStats struct {
	Count int
	Mean  float64
	Max   float64
	P95   float64
}

// MeanMs returns the mean gap in milliseconds.
func (g GapStats) MeanMs() float64 { return g.Mean * 1000 }

// MaxMs returns the largest gap in milliseconds.
func (g GapStats) MaxMs() float64 { return g.Max * 1000 }
