package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bull/evidence-rag/internal/evidence"
)

// SQLiteCatalog is the durable sentence store. It answers fetch-sentences
// and document-count queries for the retrieval layer.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens (and if needed creates) the catalog at dbPath.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	// One writer at a time; sqlite serialises anyway.
	db.SetMaxOpenConns(1)

	c := &SQLiteCatalog{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCatalog) initSchema() error {
	queries := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			source TEXT,
			paragraphs INTEGER,
			sentences INTEGER,
			ingested_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS sentences (
			document_id TEXT NOT NULL,
			sentence_id INTEGER NOT NULL,
			page_id INTEGER NOT NULL,
			text TEXT NOT NULL,
			PRIMARY KEY (document_id, sentence_id),
			FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
		);`,
	}
	for _, q := range queries {
		if _, err := c.db.Exec(q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

// ReplaceDocument stores a document's sentences, replacing any previous
// version of the same document.
func (c *SQLiteCatalog) ReplaceDocument(ctx context.Context, info DocumentInfo, sentences []evidence.Sentence) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM sentences WHERE document_id = ?`, info.ID); err != nil {
		return fmt.Errorf("delete sentences: %w", err)
	}
	if info.IngestedAt.IsZero() {
		info.IngestedAt = time.Now()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, source, paragraphs, sentences, ingested_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET source = excluded.source, paragraphs = excluded.paragraphs,
		 sentences = excluded.sentences, ingested_at = excluded.ingested_at`,
		info.ID, info.Source, info.Paragraphs, len(sentences), info.IngestedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sentences (document_id, sentence_id, page_id, text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, s := range sentences {
		if _, err = stmt.ExecContext(ctx, info.ID, s.SentenceID, s.PageID, s.Text); err != nil {
			return fmt.Errorf("insert sentence %d: %w", s.SentenceID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Sentences returns a document's sentences ordered by sentence id.
// Returns ErrDocumentNotFound for an unknown document.
func (c *SQLiteCatalog) Sentences(ctx context.Context, documentID string) ([]evidence.Sentence, error) {
	var exists int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, documentID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("lookup document: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT sentence_id, page_id, text FROM sentences WHERE document_id = ? ORDER BY sentence_id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query sentences: %w", err)
	}
	defer rows.Close()

	var out []evidence.Sentence
	for rows.Next() {
		s := evidence.Sentence{DocumentID: documentID}
		if err := rows.Scan(&s.SentenceID, &s.PageID, &s.Text); err != nil {
			return nil, fmt.Errorf("scan sentence: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DocumentCount returns the number of distinct documents.
func (c *SQLiteCatalog) DocumentCount(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Documents lists every document ordered by id.
func (c *SQLiteCatalog) Documents(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, source, paragraphs, sentences, ingested_at FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentInfo
	for rows.Next() {
		var info DocumentInfo
		var ingested string
		if err := rows.Scan(&info.ID, &info.Source, &info.Paragraphs, &info.Sentences, &ingested); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		info.IngestedAt, _ = time.Parse(time.RFC3339, ingested) // zero time if unparseable
		out = append(out, info)
	}
	return out, rows.Err()
}

// Stats summarises the catalog.
func (c *SQLiteCatalog) Stats(ctx context.Context) (*CatalogStats, error) {
	docs, err := c.Documents(ctx)
	if err != nil {
		return nil, err
	}
	stats := &CatalogStats{Documents: len(docs)}
	for _, d := range docs {
		stats.Sentences += d.Sentences
		if d.IngestedAt.After(stats.LastIngested) {
			stats.LastIngested = d.IngestedAt
		}
	}
	return stats, nil
}

// Clear removes every document.
func (c *SQLiteCatalog) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM sentences`); err != nil {
		return fmt.Errorf("clear sentences: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	return nil
}

// Health pings the database.
func (c *SQLiteCatalog) Health(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("catalog ping failed: %w", err)
	}
	return nil
}
