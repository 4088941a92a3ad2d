package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"github.com/nodebench/searchmcp/internal/errors"
)

// Embedder turns text into vectors for semantic search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Available(ctx context.Context) bool
}

// Defaults for the Ollama embedder.
const (
	DefaultOllamaHost   = "http://localhost:11434"
	DefaultOllamaModel  = "nomic-embed-text"
	DefaultEmbedTimeout = 30 * time.Second
	DefaultEmbedDims    = 768
)

// OllamaConfig configures the Ollama embedding backend.
type OllamaConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// OllamaEmbedder generates embeddings through Ollama's HTTP API.
type OllamaEmbedder struct {
	host   string
	model  string
	client *http.Client

	mu   sync.RWMutex
	dims int
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an Ollama embedder. It does not contact the
// server; dimensions are detected lazily on the first call.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultEmbedTimeout
	}
	return &OllamaEmbedder{
		host:   cfg.Host,
		model:  cfg.Model,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed generates a normalized embedding for text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeEmbedderUnreachable, "cannot reach embedding backend", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	vec := make([]float32, len(result.Embeddings[0]))
	for i, v := range result.Embeddings[0] {
		vec[i] = float32(v)
	}
	normalizeVectorInPlace(vec)

	e.mu.Lock()
	e.dims = len(vec)
	e.mu.Unlock()
	return vec, nil
}

// Dimensions returns the detected embedding dimension, or the default
// before the first successful call.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.dims == 0 {
		return DefaultEmbedDims
	}
	return e.dims
}

// Available checks whether the Ollama server answers and lists the model.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// VectorDoc pairs a document with the text to embed for it.
type VectorDoc struct {
	ID          string
	Title       string
	URL         string
	Text        string
	ContentType string
	PublishedAt time.Time
}

// vectorMeta is the per-document metadata kept alongside the graph.
type vectorMeta struct {
	Title       string
	URL         string
	Snippet     string
	ContentType string
	PublishedAt time.Time
}

// vectorFileMeta stores ID mappings for persistence.
type vectorFileMeta struct {
	IDMap   map[string]uint64
	Docs    map[string]vectorMeta
	NextKey uint64
}

// VectorAdapter serves semantic search over an HNSW graph of document
// embeddings. Deletions are lazy: the node stays in the graph but loses
// its ID mapping and disappears from results.
type VectorAdapter struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[uint64]
	embedder Embedder

	idMap   map[string]uint64
	keyMap  map[uint64]string
	docs    map[string]vectorMeta
	nextKey uint64

	path   string
	closed bool
}

var _ Adapter = (*VectorAdapter)(nil)

// NewVectorAdapter creates a semantic search adapter. If path names an
// existing saved graph it is loaded; otherwise the graph starts empty.
func NewVectorAdapter(embedder Embedder, path string) (*VectorAdapter, error) {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	a := &VectorAdapter{
		graph:    graph,
		embedder: embedder,
		idMap:    make(map[string]uint64),
		keyMap:   make(map[uint64]string),
		docs:     make(map[string]vectorMeta),
		path:     path,
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := a.load(path); err != nil {
				return nil, errors.New(errors.ErrCodeStoreFailed, "cannot load vector store", err)
			}
		}
	}
	return a, nil
}

// Name returns the stable source identifier.
func (a *VectorAdapter) Name() string { return "vector" }

// IsAvailable reports whether the embedding backend answers.
func (a *VectorAdapter) IsAvailable() bool {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return false
	}
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return a.embedder.Available(ctx)
}

// Search embeds the query and returns nearest documents.
func (a *VectorAdapter) Search(ctx context.Context, query string, opts RetrievalOptions) ([]RawResult, error) {
	a.mu.RLock()
	closed := a.closed
	empty := a.graph.Len() == 0
	a.mu.RUnlock()

	if closed {
		return nil, errors.New(errors.ErrCodeSourceUnavailable, "vector store is closed", nil)
	}
	if empty {
		return []RawResult{}, nil
	}

	queryVec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.SourceError("vector", "query embedding failed", err)
	}

	k := opts.MaxResults
	if k <= 0 {
		k = 20
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	// Over-fetch to absorb lazily deleted nodes.
	nodes := a.graph.Search(queryVec, k*2)

	results := make([]RawResult, 0, k)
	for _, node := range nodes {
		if len(results) >= k {
			break
		}
		id, ok := a.keyMap[node.Key]
		if !ok {
			continue
		}
		meta := a.docs[id]

		distance := a.graph.Distance(queryVec, node.Value)
		r := RawResult{
			Source:      "vector",
			DocID:       id,
			Title:       meta.Title,
			URL:         meta.URL,
			Snippet:     meta.Snippet,
			ContentType: meta.ContentType,
			PublishedAt: meta.PublishedAt,
			Rank:        len(results) + 1,
			// Cosine distance ranges 0..2; fold into a 0..1 score.
			Score: float64(1.0 - distance/2.0),
		}
		if !dateInRange(r.PublishedAt, opts.DateFrom, opts.DateTo) {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// Add embeds documents and inserts them into the graph. Existing IDs are
// replaced via lazy deletion.
func (a *VectorAdapter) Add(ctx context.Context, docs []VectorDoc) error {
	for _, doc := range docs {
		if doc.ID == "" {
			return errors.ValidationError("document ID is required", nil)
		}
		vec, err := a.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return errors.SourceError("vector", fmt.Sprintf("embedding document %s failed", doc.ID), err)
		}

		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			return errors.New(errors.ErrCodeStoreFailed, "vector store is closed", nil)
		}
		if existingKey, exists := a.idMap[doc.ID]; exists {
			delete(a.keyMap, existingKey)
			delete(a.idMap, doc.ID)
		}
		key := a.nextKey
		a.nextKey++
		a.graph.Add(hnsw.MakeNode(key, vec))
		a.idMap[doc.ID] = key
		a.keyMap[key] = doc.ID
		a.docs[doc.ID] = vectorMeta{
			Title:       doc.Title,
			URL:         doc.URL,
			Snippet:     snippetOf(doc.Text),
			ContentType: doc.ContentType,
			PublishedAt: doc.PublishedAt,
		}
		a.mu.Unlock()
	}
	return nil
}

// Delete removes documents by ID using lazy deletion.
func (a *VectorAdapter) Delete(ids []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		if key, exists := a.idMap[id]; exists {
			delete(a.keyMap, key)
			delete(a.idMap, id)
			delete(a.docs, id)
		}
	}
}

// Count returns the number of live documents.
func (a *VectorAdapter) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.idMap)
}

// Save persists the graph and metadata with temp-file-then-rename writes.
func (a *VectorAdapter) Save() error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.path == "" {
		return nil
	}
	if a.closed {
		return errors.New(errors.ErrCodeStoreFailed, "vector store is closed", nil)
	}

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return errors.New(errors.ErrCodeStoreFailed, "cannot create vector store directory", err)
	}

	tmpPath := a.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return errors.New(errors.ErrCodeStoreFailed, "cannot create vector store file", err)
	}
	if err := a.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return errors.New(errors.ErrCodeStoreFailed, "cannot export vector graph", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.New(errors.ErrCodeStoreFailed, "cannot close vector store file", err)
	}
	if err := os.Rename(tmpPath, a.path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.New(errors.ErrCodeStoreFailed, "cannot finalize vector store file", err)
	}

	return a.saveMeta(a.path + ".meta")
}

func (a *VectorAdapter) saveMeta(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return errors.New(errors.ErrCodeStoreFailed, "cannot create vector metadata file", err)
	}

	meta := vectorFileMeta{IDMap: a.idMap, Docs: a.docs, NextKey: a.nextKey}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return errors.New(errors.ErrCodeStoreFailed, "cannot encode vector metadata", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.New(errors.ErrCodeStoreFailed, "cannot close vector metadata file", err)
	}
	return os.Rename(tmpPath, path)
}

// load restores the graph and metadata from disk.
func (a *VectorAdapter) load(path string) error {
	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return fmt.Errorf("open vector metadata: %w", err)
	}
	defer func() { _ = metaFile.Close() }()

	var meta vectorFileMeta
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return fmt.Errorf("decode vector metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open vector graph: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Import requires an io.ByteReader.
	if err := a.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import vector graph: %w", err)
	}

	a.idMap = meta.IDMap
	a.docs = meta.Docs
	a.nextKey = meta.NextKey
	a.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range meta.IDMap {
		a.keyMap[key] = id
	}
	return nil
}

// Close releases the graph.
func (a *VectorAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.graph = nil
	return nil
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}
