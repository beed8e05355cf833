package models

import (
	"math"
	"time"
)

// Capture is one timestamped sensor sample.
// ID is an opaque handle (the dataset-relative path) used only for output.
type Capture struct {
	Timestamp float64 // Seconds, as encoded in the file name
	ID        string  // e.g. rgb/1305031102.175304.png
}

// Association is one confirmed correspondence between a reference capture
// and its closest candidate capture.
type Association struct {
	RefTimestamp   float64
	RefID          string
	MatchTimestamp float64
	MatchID        string
}

// Gap returns the absolute timestamp difference of the pair in seconds.
func (a Association) Gap() float64 {
	return math.Abs(a.MatchTimestamp - a.RefTimestamp)
}

// Run describes one completed association of a dataset folder.
type Run struct {
	ID         string    // Run ID (UUID)
	DatasetDir string    // Dataset root
	RefDir     string    // Reference stream folder, relative to DatasetDir
	CandDir    string    // Candidate stream folder, relative to DatasetDir
	OutputPath string    // Association file written by the run
	Tolerance  float64   // Max allowed gap in seconds
	RefCount   int       // Reference captures scanned
	CandCount  int       // Candidate captures scanned
	Matched    int       // Associations written
	Unmatched  int       // Reference captures dropped
	MeanGapMs  float64   // Mean gap of written associations
	MaxGapMs   float64   // Largest gap of written associations
	CreatedAt  time.Time // When the run was recorded
}
