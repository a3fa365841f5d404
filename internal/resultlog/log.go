package resultlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bull/evidence-rag/internal/evidence"
)

// Extension is the result log file extension.
const Extension = ".jsonl"

// Writer appends findings to one query's result log. Each Append is a single
// write of one complete line, so a crash loses at most the batch in flight.
// Safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	count int
}

// Create opens a new result log at dir/name. If that file already exists a
// numeric suffix is added so an existing log is never appended to.
func Create(dir, name string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	base := strings.TrimSuffix(name, Extension)
	for i := 0; ; i++ {
		candidate := base + Extension
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", base, i, Extension)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o640)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create result log: %w", err)
		}
		return &Writer{file: f, path: path}, nil
	}
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Count returns how many findings were appended.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Append writes one finding as a JSON line.
func (w *Writer) Append(f *evidence.Finding) error {
	line, err := json.Marshal(FromFinding(f))
	if err != nil {
		return fmt.Errorf("encode finding: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("append finding to %s: %w", w.path, err)
	}
	w.count++
	return nil
}

// Close flushes the log to stable storage and closes it.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("sync %s: %w", w.path, err)
	}
	return w.file.Close()
}

// Read decodes every finding in r. Blank lines are skipped. A final line
// without a terminating newline that does not decode is treated as a write
// cut short by a crash and ignored.
func Read(r io.Reader) ([]*evidence.Finding, error) {
	br := bufio.NewReader(r)
	var findings []*evidence.Finding
	for lineNo := 1; ; lineNo++ {
		line, readErr := br.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, fmt.Errorf("read line %d: %w", lineNo, readErr)
		}
		complete := bytes.HasSuffix(line, []byte("\n"))
		line = bytes.TrimSpace(line)

		if len(line) > 0 {
			var rec Record
			if err := json.Unmarshal(line, &rec); err != nil {
				if !complete && readErr == io.EOF {
					break
				}
				return nil, fmt.Errorf("decode line %d: %w", lineNo, err)
			}
			findings = append(findings, rec.Finding())
		}

		if readErr == io.EOF {
			break
		}
	}
	return findings, nil
}

// ReadFile decodes the result log at path.
func ReadFile(path string) ([]*evidence.Finding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open result log: %w", err)
	}
	defer f.Close()

	findings, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return findings, nil
}

// List returns the result logs in runDir, sorted by name.
func List(runDir string) ([]string, error) {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return nil, fmt.Errorf("list run directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != Extension {
			continue
		}
		paths = append(paths, filepath.Join(runDir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
