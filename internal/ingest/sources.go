package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/bull/evidence-rag/internal/evidence"
	"github.com/bull/evidence-rag/internal/github"
)

// maxFileSize bounds a single extracted case file.
const maxFileSize = 64 << 20

// FailedFile is a file that could not be loaded.
type FailedFile struct {
	Path   string
	Reason string
}

// Loaded is the outcome of reading a source.
type Loaded struct {
	Documents []*Document
	Failed    []FailedFile
}

// Loader reads case files from disk, archives or GitHub.
type Loader struct {
	parser  *Parser
	include []glob.Glob
	logger  *slog.Logger
}

// NewLoader creates a Loader. include holds glob patterns matched against
// slash-separated paths relative to the source root; none means every
// supported file. A nil logger uses slog.Default().
func NewLoader(parser *Parser, include []string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{parser: parser, logger: logger}
	for _, pattern := range include {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("%w: bad include pattern %q: %v", evidence.ErrInvalidArgument, pattern, err)
		}
		l.include = append(l.include, g)
	}
	return l, nil
}

func (l *Loader) wanted(rel string) bool {
	if !Supported(rel) {
		return false
	}
	if len(l.include) == 0 {
		return true
	}
	for _, g := range l.include {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// LoadPath reads a .txt/.md file, a .zip archive or a directory tree.
// It fails with ErrInvalidArgument when nothing yields a sentence.
func (l *Loader) LoadPath(ctx context.Context, p string) (*Loaded, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", evidence.ErrInvalidArgument, err)
	}

	out := &Loaded{}
	switch {
	case info.IsDir():
		err = l.loadDir(ctx, p, out)
	case strings.EqualFold(filepath.Ext(p), ".zip"):
		err = l.loadZipFile(ctx, p, out)
	case Supported(p):
		var content []byte
		content, err = os.ReadFile(p)
		if err == nil {
			l.add(out, filepath.Base(p), p, content)
		}
	default:
		err = fmt.Errorf("%w: unsupported input %q", evidence.ErrInvalidArgument, p)
	}
	if err != nil {
		return nil, err
	}
	return finish(out)
}

// LoadZip reads every wanted file in an in-memory zip archive.
func (l *Loader) LoadZip(ctx context.Context, name string, data []byte) (*Loaded, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", evidence.ErrInvalidArgument, name, err)
	}
	out := &Loaded{}
	if err := l.loadZip(ctx, name, r.File, out); err != nil {
		return nil, err
	}
	return finish(out)
}

// LoadGitHub reads every wanted case file under the fetcher's directory.
func (l *Loader) LoadGitHub(ctx context.Context, fetcher *github.Fetcher) (*Loaded, error) {
	paths, err := fetcher.ListDocs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list docs: %w", err)
	}
	l.logger.Info("Found case files", "source", fetcher.Source(), "count", len(paths))

	out := &Loaded{}
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !l.wanted(rel) || hiddenPath(rel) {
			continue
		}
		doc, err := fetcher.FetchDoc(ctx, rel)
		if err != nil {
			l.fail(out, rel, err)
			continue
		}
		l.add(out, rel, doc.URL, []byte(doc.Content))
	}
	return finish(out)
}

func (l *Loader) loadDir(ctx context.Context, root string, out *Loaded) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p != root && hidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !l.wanted(rel) {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			l.fail(out, rel, err)
			return nil
		}
		l.add(out, rel, p, content)
		return nil
	})
}

func (l *Loader) loadZipFile(ctx context.Context, p string, out *Loaded) error {
	r, err := zip.OpenReader(p)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", evidence.ErrInvalidArgument, p, err)
	}
	defer r.Close()
	return l.loadZip(ctx, p, r.File, out)
}

func (l *Loader) loadZip(ctx context.Context, archive string, files []*zip.File, out *Loaded) error {
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.FileInfo().IsDir() || !l.wanted(f.Name) || hiddenPath(f.Name) {
			continue
		}
		content, err := readZipEntry(f)
		if err != nil {
			l.fail(out, f.Name, err)
			continue
		}
		l.add(out, f.Name, archive+"!"+f.Name, content)
	}
	return nil
}

// hidden reports whether a file or directory name is a dotfile.
func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// hiddenPath reports whether any element of a slash-separated path is hidden.
func hiddenPath(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if hidden(part) {
			return true
		}
	}
	return false
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	content, err := io.ReadAll(io.LimitReader(rc, maxFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(content) > maxFileSize {
		return nil, fmt.Errorf("file exceeds %d bytes", maxFileSize)
	}
	return content, nil
}

func (l *Loader) add(out *Loaded, rel, source string, content []byte) {
	doc, err := l.parser.Parse(rel, source, content)
	if err != nil {
		l.fail(out, rel, err)
		return
	}
	for _, existing := range out.Documents {
		if existing.ID == doc.ID {
			l.fail(out, rel, fmt.Errorf("duplicate document id %q (already read from %s)", doc.ID, existing.Source))
			return
		}
	}
	if len(doc.Sentences) == 0 {
		l.logger.Debug("Skipping empty case file", "path", rel)
		return
	}
	l.logger.Debug("Parsed case file", "path", rel, "paragraphs", doc.Paragraphs, "sentences", len(doc.Sentences))
	out.Documents = append(out.Documents, doc)
}

func (l *Loader) fail(out *Loaded, rel string, err error) {
	l.logger.Warn("Failed to load case file", "path", rel, "error", err)
	out.Failed = append(out.Failed, FailedFile{Path: rel, Reason: err.Error()})
}

func finish(out *Loaded) (*Loaded, error) {
	if len(out.Documents) == 0 {
		return nil, fmt.Errorf("%w: no data found", evidence.ErrInvalidArgument)
	}
	sort.Slice(out.Documents, func(i, j int) bool { return out.Documents[i].ID < out.Documents[j].ID })
	return out, nil
}
