package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/nodebench/searchmcp/internal/errors"
)

// IndexDoc is a document stored in the local full-text index.
type IndexDoc struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	PublishedAt time.Time `json:"published_at"`
}

// RAGIndexAdapter serves BM25 full-text search over a local Bleve index.
// It is always available once the index opens; an empty index just
// returns no results.
type RAGIndexAdapter struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ Adapter = (*RAGIndexAdapter)(nil)

// NewRAGIndexAdapter opens (or creates) the index at path.
// An empty path creates an in-memory index for testing.
func NewRAGIndexAdapter(path string) (*RAGIndexAdapter, error) {
	indexMapping := createDocMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, errors.New(errors.ErrCodeStoreFailed, "cannot create index directory", mkErr)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("ragindex_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			// Auto-clear so the next indexing run rebuilds it.
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, errors.New(errors.ErrCodeIndexCorrupt,
					fmt.Sprintf("index corrupted at %s and cannot be cleared", path), removeErr)
			}
			slog.Info("ragindex_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, reindex required"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("ragindex_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, errors.New(errors.ErrCodeIndexCorrupt, "index corrupted and cannot be cleared", removeErr)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreFailed, "cannot open index", err)
	}

	return &RAGIndexAdapter{index: idx, path: path}, nil
}

// createDocMapping builds the index mapping for document search.
func createDocMapping() *mapping.IndexMappingImpl {
	docMapping := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textField)
	docMapping.AddFieldMappingsAt("body", textField)

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Index = false
	docMapping.AddFieldMappingsAt("url", keywordField)
	docMapping.AddFieldMappingsAt("content_type", keywordField)

	dateField := bleve.NewDateTimeFieldMapping()
	docMapping.AddFieldMappingsAt("published_at", dateField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// validateIndexIntegrity checks whether a Bleve index directory looks sane
// before opening. Returns nil for a missing index (it will be created).
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// isCorruptionError checks if an error indicates Bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// Name returns the stable source identifier.
func (a *RAGIndexAdapter) Name() string { return "ragindex" }

// IsAvailable reports whether the index is open.
func (a *RAGIndexAdapter) IsAvailable() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.index != nil && !a.closed
}

// Search runs a BM25 match query over title and body.
func (a *RAGIndexAdapter) Search(ctx context.Context, queryStr string, opts RetrievalOptions) ([]RawResult, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, errors.New(errors.ErrCodeSourceUnavailable, "index is closed", nil)
	}
	if strings.TrimSpace(queryStr) == "" {
		return []RawResult{}, nil
	}

	titleQuery := bleve.NewMatchQuery(queryStr)
	titleQuery.SetField("title")
	titleQuery.SetBoost(2.0)

	bodyQuery := bleve.NewMatchQuery(queryStr)
	bodyQuery.SetField("body")

	searchRequest := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(titleQuery, bodyQuery))
	searchRequest.Size = opts.MaxResults
	if searchRequest.Size <= 0 {
		searchRequest.Size = 20
	}
	searchRequest.Fields = []string{"title", "body", "url", "content_type", "published_at"}

	result, err := a.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, errors.SourceError("ragindex", "index search failed", err)
	}

	results := make([]RawResult, 0, len(result.Hits))
	for i, hit := range result.Hits {
		r := RawResult{
			Source:      "ragindex",
			DocID:       hit.ID,
			Title:       fieldString(hit.Fields, "title"),
			URL:         fieldString(hit.Fields, "url"),
			Snippet:     snippetOf(fieldString(hit.Fields, "body")),
			ContentType: fieldString(hit.Fields, "content_type"),
			Rank:        i + 1,
			Score:       hit.Score,
		}
		if raw := fieldString(hit.Fields, "published_at"); raw != "" {
			if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
				r.PublishedAt = t
			}
		}
		if !dateInRange(r.PublishedAt, opts.DateFrom, opts.DateTo) {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// Index adds or replaces documents in the index.
func (a *RAGIndexAdapter) Index(ctx context.Context, docs []IndexDoc) error {
	if len(docs) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return errors.New(errors.ErrCodeStoreFailed, "index is closed", nil)
	}

	batch := a.index.NewBatch()
	for _, doc := range docs {
		if doc.ID == "" {
			return errors.ValidationError("document ID is required", nil)
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			return errors.New(errors.ErrCodeStoreFailed,
				fmt.Sprintf("cannot index document %s", doc.ID), err)
		}
	}
	if err := a.index.Batch(batch); err != nil {
		return errors.New(errors.ErrCodeStoreFailed, "index batch failed", err)
	}
	return nil
}

// Delete removes documents by ID.
func (a *RAGIndexAdapter) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return errors.New(errors.ErrCodeStoreFailed, "index is closed", nil)
	}

	batch := a.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := a.index.Batch(batch); err != nil {
		return errors.New(errors.ErrCodeStoreFailed, "delete batch failed", err)
	}
	return nil
}

// DocCount returns the number of indexed documents.
func (a *RAGIndexAdapter) DocCount() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return 0
	}
	n, _ := a.index.DocCount()
	return n
}

// Close closes the underlying index.
func (a *RAGIndexAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	if a.index != nil {
		return a.index.Close()
	}
	return nil
}

// fieldString pulls a string field out of a Bleve hit.
func fieldString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// snippetOf truncates body text to a display snippet.
func snippetOf(body string) string {
	const maxSnippet = 240
	body = strings.TrimSpace(body)
	if len(body) <= maxSnippet {
		return body
	}
	cut := body[:maxSnippet]
	if idx := strings.LastIndex(cut, " "); idx > maxSnippet/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
