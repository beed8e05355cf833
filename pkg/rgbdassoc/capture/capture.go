// Package capture turns a folder of timestamp-named sensor frames into a
// sorted capture sequence.
package capture

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/himanishpuri/rgbdassoc/pkg/logger"
	"github.com/himanishpuri/rgbdassoc/pkg/models"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc/association"
)

// DefaultExtensions are the frame file extensions scanned when none are given.
var DefaultExtensions = []string{".png"}

var timestampPattern = regexp.MustCompile(`\d+\.\d+`)

// ParseTimestamp extracts the first <digits>.<digits> run of name,
// e.g. 1305031102.175304 from 1305031102.175304.png.
func ParseTimestamp(name string) (float64, bool) {
	m := timestampPattern.FindString(name)
	if m == "" {
		return 0, false
	}
	ts, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// Scan lists dir and returns its frames as captures sorted by timestamp.
// Captures are identified as prefix/<file name>. Extensions match
// case-insensitively, with or without the leading dot. Files with another
// extension, whitespace in their name or no timestamp in their name are skipped.
func Scan(dir, prefix string, exts []string) ([]models.Capture, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading capture dir %s: %w", dir, err)
	}

	log := logger.GetLogger()
	caps := lo.FilterMap(entries, func(e os.DirEntry, _ int) (models.Capture, bool) {
		name := e.Name()
		if e.IsDir() || !hasExtension(name, exts) {
			return models.Capture{}, false
		}
		if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
			log.Debugf("Skipping %s: whitespace in file name", filepath.Join(dir, name))
			return models.Capture{}, false
		}
		ts, ok := ParseTimestamp(name)
		if !ok {
			log.Debugf("Skipping %s: no timestamp in file name", filepath.Join(dir, name))
			return models.Capture{}, false
		}
		return models.Capture{Timestamp: ts, ID: joinID(prefix, name)}, true
	})

	return association.Sort(caps), nil
}

// hasExtension accepts extensions given with or without the leading dot.
func hasExtension(name string, exts []string) bool {
	ext := filepath.Ext(name)
	return lo.ContainsBy(exts, func(want string) bool {
		if want != "" && !strings.HasPrefix(want, ".") {
			want = "." + want
		}
		return strings.EqualFold(ext, want)
	})
}

// joinID builds a slash-separated identifier regardless of platform, since
// identifiers end up in the association file.
func joinID(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(filepath.ToSlash(prefix), name)
}
