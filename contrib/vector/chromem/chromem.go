// Package chromem stores the knowledge base in an embedded chromem-go
// collection, optionally persisted to disk. It queries by text and
// returns scored passages, so it plugs directly into the answer
// pipeline's retrieval contract.
package chromem

import (
	"context"
	"fmt"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"

	"github.com/mathsage/mathsage/errors"
	"github.com/mathsage/mathsage/knowledge/document"
	"github.com/mathsage/mathsage/knowledge/retriever"
	"github.com/mathsage/mathsage/vector"
)

// Config holds store configuration.
type Config struct {
	// PersistPath enables on-disk persistence when non-empty.
	PersistPath string
	// Collection names the chromem collection. Defaults to "knowledge".
	Collection string
	// Embedder overrides chromem's default embedding function.
	Embedder vector.Embedder
}

// Store implements retriever.Searcher over a chromem collection.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     Config
}

var _ retriever.Searcher = (*Store)(nil)

// New creates a chromem-backed knowledge store.
func New(config Config) (*Store, error) {
	if config.Collection == "" {
		config.Collection = "knowledge"
	}

	var db *chromem.DB
	var err error
	if config.PersistPath != "" {
		db, err = chromem.NewPersistentDB(filepath.Join(config.PersistPath, "chromem.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	var embeddingFunc chromem.EmbeddingFunc
	if config.Embedder != nil {
		emb := config.Embedder
		embeddingFunc = func(ctx context.Context, text string) ([]float32, error) {
			return emb.Embed(ctx, text)
		}
	}

	collection, err := db.GetOrCreateCollection(config.Collection, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &Store{db: db, collection: collection, config: config}, nil
}

// AddChunks indexes document chunks.
func (s *Store) AddChunks(ctx context.Context, chunks ...document.Chunk) error {
	for _, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("%w: chunk ID cannot be empty", errors.ErrInvalidInput)
		}
		meta := map[string]string{"source": c.Source}
		for k, v := range c.Metadata {
			meta[k] = fmt.Sprint(v)
		}
		if err := s.collection.AddDocument(ctx, chromem.Document{
			ID:       c.ID,
			Content:  c.Content,
			Metadata: meta,
		}); err != nil {
			return fmt.Errorf("add chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// Search implements retriever.Searcher: descending similarity, every
// passage scoring at least scoreThreshold, at most n entries.
func (s *Store) Search(ctx context.Context, query string, n int, scoreThreshold float64) ([]retriever.Passage, error) {
	if n <= 0 {
		n = 3
	}
	// chromem rejects queries asking for more results than stored.
	if count := s.collection.Count(); count < n {
		if count == 0 {
			return nil, nil
		}
		n = count
	}

	results, err := s.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	passages := make([]retriever.Passage, 0, len(results))
	for _, r := range results {
		score := float64(r.Similarity)
		if score < scoreThreshold {
			continue
		}
		passages = append(passages, retriever.Passage{
			Text:   r.Content,
			Source: r.Metadata["source"],
			Score:  score,
		})
	}
	return passages, nil
}

// Count reports how many chunks are indexed.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Clear drops and recreates the collection.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.db.DeleteCollection(s.config.Collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}

	var embeddingFunc chromem.EmbeddingFunc
	if s.config.Embedder != nil {
		emb := s.config.Embedder
		embeddingFunc = func(ctx context.Context, text string) ([]float32, error) {
			return emb.Embed(ctx, text)
		}
	}
	collection, err := s.db.GetOrCreateCollection(s.config.Collection, nil, embeddingFunc)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.collection = collection
	return nil
}
