package rgbdassoc

import "github.com/himanishpuri/rgbdassoc/pkg/models"

// RunSummary is the outcome of associating one dataset folder.
type RunSummary struct {
	Run          models.Run           // Catalog record of the run
	Stats        models.GapStats      // Gap statistics of the written associations
	Associations []models.Association // Lines written to Run.OutputPath
	Unmatched    []models.Capture     // Reference frames with no depth frame within tolerance
}
