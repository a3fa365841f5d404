package resultlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bull/evidence-rag/internal/evidence"
)

// TimestampLayout formats run and log timestamps (YYYYMMDD-HHMMSS).
const TimestampLayout = "20060102-150405"

var unsafeRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// SanitizeQuery derives a filename fragment from query text: everything but
// letters, digits, underscores and whitespace is stripped, then spaces become
// hyphens.
func SanitizeQuery(query string) string {
	s := unsafeRe.ReplaceAllString(query, "")
	return strings.ReplaceAll(s, " ", "-")
}

// LogName is the file name of one query's result log.
func LogName(ts time.Time, query string) string {
	return fmt.Sprintf("%s_%s%s", ts.Format(TimestampLayout), SanitizeQuery(query), Extension)
}

// RunDir is the directory holding every result log of one run.
func RunDir(outputDir string, topN int, start time.Time) string {
	return filepath.Join(outputDir, fmt.Sprintf("RAG_Top%d_%s", topN, start.Format(TimestampLayout)))
}

var runDirRe = regexp.MustCompile(`^RAG_Top(-?\d+)_(\d{8}-\d{6})$`)

// Run identifies one run directory.
type Run struct {
	Name    string
	Path    string
	TopN    int
	Started time.Time
}

// ParseRunName parses a run directory name produced by RunDir.
func ParseRunName(name string) (Run, bool) {
	m := runDirRe.FindStringSubmatch(name)
	if m == nil {
		return Run{}, false
	}
	started, err := time.ParseInLocation(TimestampLayout, m[2], time.Local)
	if err != nil {
		return Run{}, false
	}
	var topN int
	fmt.Sscanf(m[1], "%d", &topN)
	return Run{Name: name, TopN: topN, Started: started}, true
}

// ListRuns returns the run directories under outputDir, oldest first.
// A missing outputDir has no runs.
func ListRuns(outputDir string) ([]Run, error) {
	entries, err := os.ReadDir(outputDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list output directory: %w", err)
	}
	var runs []Run
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		run, ok := ParseRunName(e.Name())
		if !ok {
			continue
		}
		run.Path = filepath.Join(outputDir, e.Name())
		runs = append(runs, run)
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Started.Before(runs[j].Started) })
	return runs, nil
}

// ResolveRun finds a run by directory name, or the latest run when name is
// empty. Names that are not plain run directory names are rejected.
func ResolveRun(outputDir, name string) (Run, error) {
	if name != "" {
		run, ok := ParseRunName(name)
		if !ok {
			return Run{}, fmt.Errorf("%w: %q is not a run name", evidence.ErrInvalidArgument, name)
		}
		run.Path = filepath.Join(outputDir, name)
		if _, err := os.Stat(run.Path); err != nil {
			return Run{}, fmt.Errorf("%w: run %s: %v", evidence.ErrInvalidArgument, name, err)
		}
		return run, nil
	}
	runs, err := ListRuns(outputDir)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("%w: no runs in %s", evidence.ErrInvalidArgument, outputDir)
	}
	return runs[len(runs)-1], nil
}
