// Package assocfile reads and writes association files: one line per pair,
//
//	<ref timestamp> <ref path> <match timestamp> <match path>
//
// with timestamps printed to six decimal places.
package assocfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/himanishpuri/rgbdassoc/pkg/models"
	"github.com/himanishpuri/rgbdassoc/pkg/utils"
)

// DefaultFileName is the association file written into a dataset folder.
const DefaultFileName = "associate.txt"

// ErrMalformedLine is returned by Read for lines that do not hold four
// whitespace-separated fields with numeric timestamps.
var ErrMalformedLine = errors.New("malformed association line")

// FormatLine renders a single association, including the trailing newline.
func FormatLine(a models.Association) string {
	return fmt.Sprintf("%.6f %s %.6f %s\n", a.RefTimestamp, a.RefID, a.MatchTimestamp, a.MatchID)
}

// Write writes one line per association to w and returns the number of lines
// written. Nothing is written when an identifier contains whitespace, since
// the line could not be split back into four fields.
func Write(w io.Writer, assocs []models.Association) (int, error) {
	for i, a := range assocs {
		if err := checkID(a.RefID); err != nil {
			return 0, fmt.Errorf("association %d: %w", i, err)
		}
		if err := checkID(a.MatchID); err != nil {
			return 0, fmt.Errorf("association %d: %w", i, err)
		}
	}

	bw := bufio.NewWriter(w)
	for i, a := range assocs {
		if _, err := bw.WriteString(FormatLine(a)); err != nil {
			return i, fmt.Errorf("writing association %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("flushing associations: %w", err)
	}
	return len(assocs), nil
}

// WriteFile writes the associations to path, replacing any existing file.
// The content goes to a temporary file in the same folder first so readers
// never observe a partial file.
func WriteFile(path string, assocs []models.Association) (int, error) {
	dir := filepath.Dir(path)
	if err := utils.MakeDir(dir); err != nil {
		return 0, fmt.Errorf("creating output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := Write(tmp, assocs)
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return 0, fmt.Errorf("setting file mode: %w", err)
	}
	if err := utils.MoveFile(tmpPath, path); err != nil {
		return 0, err
	}
	return n, nil
}

// Read parses association lines from r. Blank lines and lines starting with
// '#' are skipped.
func Read(r io.Reader) ([]models.Association, error) {
	var out []models.Association
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		a, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, a)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading associations: %w", err)
	}
	return out, nil
}

// ReadFile reads the association file at path.
func ReadFile(path string) ([]models.Association, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening association file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func checkID(id string) error {
	if id == "" || strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: identifier %q is empty or contains whitespace", ErrMalformedLine, id)
	}
	return nil
}

func parseLine(line string) (models.Association, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return models.Association{}, fmt.Errorf("%w: want 4 fields, got %d", ErrMalformedLine, len(fields))
	}
	refTs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return models.Association{}, fmt.Errorf("%w: reference timestamp %q", ErrMalformedLine, fields[0])
	}
	matchTs, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return models.Association{}, fmt.Errorf("%w: matched timestamp %q", ErrMalformedLine, fields[2])
	}
	return models.Association{
		RefTimestamp:   refTs,
		RefID:          fields[1],
		MatchTimestamp: matchTs,
		MatchID:        fields[3],
	}, nil
}
