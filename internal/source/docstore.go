package source

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nodebench/searchmcp/internal/errors"
)

// StoredDoc is a document persisted in the archive store.
type StoredDoc struct {
	ID          string
	Title       string
	Body        string
	URL         string
	ContentType string
	PublishedAt time.Time
}

// DocStoreAdapter serves full-text search over an SQLite archive of
// fetched documents. FTS5 provides BM25 scoring; metadata lives in a
// companion table keyed by doc_id.
type DocStoreAdapter struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ Adapter = (*DocStoreAdapter)(nil)

// NewDocStoreAdapter opens (or creates) the archive database at path.
// Use ":memory:" for an in-memory store in tests.
func NewDocStoreAdapter(path string) (*DocStoreAdapter, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	// modernc.org/sqlite is pure Go, no CGO.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreFailed, "cannot open document store", err)
	}

	// Single writer prevents lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite, so set pragmas explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.New(errors.ErrCodeStoreFailed, "cannot configure document store", err)
		}
	}

	s := &DocStoreAdapter{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.New(errors.ErrCodeStoreFailed, "cannot initialize document store schema", err)
	}
	return s, nil
}

func (s *DocStoreAdapter) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- FTS5 virtual table for full-text search with BM25 scoring.
	-- doc_id is UNINDEXED (stored but not searchable).
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_docs USING fts5(
		doc_id UNINDEXED,
		title,
		body,
		tokenize='unicode61'
	);

	-- Metadata lives outside FTS5 so non-text fields stay typed.
	CREATE TABLE IF NOT EXISTS docs (
		doc_id       TEXT PRIMARY KEY,
		title        TEXT NOT NULL DEFAULT '',
		url          TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT '',
		published_at TEXT NOT NULL DEFAULT '',
		snippet      TEXT NOT NULL DEFAULT ''
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Name returns the stable source identifier.
func (s *DocStoreAdapter) Name() string { return "docstore" }

// IsAvailable reports whether the store is open.
func (s *DocStoreAdapter) IsAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil && !s.closed
}

// Search runs an FTS5 BM25 query over title and body.
func (s *DocStoreAdapter) Search(ctx context.Context, queryStr string, opts RetrievalOptions) ([]RawResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.New(errors.ErrCodeSourceUnavailable, "document store is closed", nil)
	}
	if strings.TrimSpace(queryStr) == "" {
		return []RawResult{}, nil
	}

	limit := opts.MaxResults
	if limit <= 0 {
		limit = 20
	}

	// bm25() returns negative values where lower means a better match.
	query := `
		SELECT f.doc_id, bm25(fts_docs) AS score,
		       d.title, d.url, d.content_type, d.published_at, d.snippet
		FROM fts_docs f
		JOIN docs d ON d.doc_id = f.doc_id
		WHERE fts_docs MATCH ?
		ORDER BY score
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, ftsQueryFor(queryStr), limit)
	if err != nil {
		// FTS5 errors on queries it cannot parse; treat those as no results.
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []RawResult{}, nil
		}
		return nil, errors.SourceError("docstore", "archive search failed", err)
	}
	defer func() { _ = rows.Close() }()

	var results []RawResult
	for rows.Next() {
		var (
			r     RawResult
			score float64
			pub   string
		)
		if err := rows.Scan(&r.DocID, &score, &r.Title, &r.URL, &r.ContentType, &pub, &r.Snippet); err != nil {
			return nil, errors.SourceError("docstore", "scanning archive row failed", err)
		}
		r.Source = "docstore"
		r.Rank = len(results) + 1
		// Fold negative BM25 into a positive score where higher is better.
		r.Score = -score
		if pub != "" {
			if t, perr := time.Parse(time.RFC3339, pub); perr == nil {
				r.PublishedAt = t
			}
		}
		if !dateInRange(r.PublishedAt, opts.DateFrom, opts.DateTo) {
			continue
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SourceError("docstore", "reading archive rows failed", err)
	}
	if results == nil {
		results = []RawResult{}
	}
	return results, nil
}

// Put inserts or replaces documents in the archive.
func (s *DocStoreAdapter) Put(ctx context.Context, docs []StoredDoc) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.ErrCodeStoreFailed, "document store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ErrCodeStoreFailed, "cannot begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FTS5 virtual tables do not support REPLACE, so delete first.
	deleteFTS, err := tx.PrepareContext(ctx, `DELETE FROM fts_docs WHERE doc_id = ?`)
	if err != nil {
		return errors.New(errors.ErrCodeStoreFailed, "cannot prepare delete", err)
	}
	defer func() { _ = deleteFTS.Close() }()

	insertFTS, err := tx.PrepareContext(ctx, `INSERT INTO fts_docs(doc_id, title, body) VALUES (?, ?, ?)`)
	if err != nil {
		return errors.New(errors.ErrCodeStoreFailed, "cannot prepare insert", err)
	}
	defer func() { _ = insertFTS.Close() }()

	upsertMeta, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO docs(doc_id, title, url, content_type, published_at, snippet)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.New(errors.ErrCodeStoreFailed, "cannot prepare metadata upsert", err)
	}
	defer func() { _ = upsertMeta.Close() }()

	for _, doc := range docs {
		if doc.ID == "" {
			return errors.ValidationError("document ID is required", nil)
		}
		pub := ""
		if !doc.PublishedAt.IsZero() {
			pub = doc.PublishedAt.Format(time.RFC3339)
		}
		if _, err := deleteFTS.ExecContext(ctx, doc.ID); err != nil {
			return errors.New(errors.ErrCodeStoreFailed, "cannot replace document "+doc.ID, err)
		}
		if _, err := insertFTS.ExecContext(ctx, doc.ID, doc.Title, doc.Body); err != nil {
			return errors.New(errors.ErrCodeStoreFailed, "cannot index document "+doc.ID, err)
		}
		if _, err := upsertMeta.ExecContext(ctx, doc.ID, doc.Title, doc.URL, doc.ContentType, pub, snippetOf(doc.Body)); err != nil {
			return errors.New(errors.ErrCodeStoreFailed, "cannot store metadata for "+doc.ID, err)
		}
	}
	return tx.Commit()
}

// Delete removes documents by ID.
func (s *DocStoreAdapter) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.ErrCodeStoreFailed, "document store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ErrCodeStoreFailed, "cannot begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fts_docs WHERE doc_id = ?`, id); err != nil {
			return errors.New(errors.ErrCodeStoreFailed, "cannot delete document "+id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM docs WHERE doc_id = ?`, id); err != nil {
			return errors.New(errors.ErrCodeStoreFailed, "cannot delete metadata for "+id, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of archived documents.
func (s *DocStoreAdapter) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, errors.New(errors.ErrCodeStoreFailed, "document store is closed", nil)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM docs`).Scan(&n); err != nil {
		return 0, errors.New(errors.ErrCodeStoreFailed, "cannot count documents", err)
	}
	return n, nil
}

// Close closes the database.
func (s *DocStoreAdapter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// ftsQueryFor quotes each term so user input cannot inject FTS5 syntax.
func ftsQueryFor(queryStr string) string {
	terms := strings.Fields(queryStr)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, "")
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " ")
}
