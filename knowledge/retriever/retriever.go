package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mathsage/mathsage/knowledge/chunking"
	"github.com/mathsage/mathsage/knowledge/document"
	"github.com/mathsage/mathsage/knowledge/embedder"
	"github.com/mathsage/mathsage/pkg/logging"
	"github.com/mathsage/mathsage/vector"
)

// Passage is one retrieved piece of evidence. Score is a similarity in
// [0, 1]; Source labels where the passage came from (file name, title).
type Passage struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Searcher is the retrieval contract the answer pipeline depends on.
// Implementations return passages in descending score order, all entries
// scoring at least scoreThreshold, at most n entries. Search must be
// idempotent for a fixed corpus state.
type Searcher interface {
	Search(ctx context.Context, query string, n int, scoreThreshold float64) ([]Passage, error)
}

// Config controls retrieval behaviour.
type Config struct {
	// CandidateFactor multiplies n when fetching neighbors from the
	// vector store, so threshold filtering still leaves enough results.
	CandidateFactor int
}

// Option customizes retriever config.
type Option func(*Config)

// WithCandidateFactor sets the candidate over-fetch multiplier.
func WithCandidateFactor(factor int) Option {
	return func(cfg *Config) {
		if factor > 0 {
			cfg.CandidateFactor = factor
		}
	}
}

// Retriever coordinates chunking, embedding, similarity search and
// score-threshold filtering over a vector store.
type Retriever struct {
	store    vector.VectorStore
	embedder embedder.Embedder
	chunker  chunking.Chunker
	cfg      Config
	logger   *slog.Logger

	mu     sync.RWMutex
	chunks map[string]document.Chunk
}

var _ Searcher = (*Retriever)(nil)

// New creates a retriever.
func New(store vector.VectorStore, emb embedder.Embedder, chunker chunking.Chunker, opts ...Option) *Retriever {
	cfg := Config{
		CandidateFactor: 3,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Retriever{
		store:    store,
		embedder: emb,
		chunker:  chunker,
		cfg:      cfg,
		logger:   logging.WithComponent("retriever"),
		chunks:   make(map[string]document.Chunk),
	}
}

// IndexDocuments ingests documents -> chunks -> embeddings -> vector store.
func (r *Retriever) IndexDocuments(ctx context.Context, docs ...document.Document) error {
	if r.store == nil || r.embedder == nil || r.chunker == nil {
		return fmt.Errorf("retriever not fully configured")
	}

	for _, doc := range docs {
		document.EnsureDocumentID(&doc)
		chunks, err := r.chunker.Chunk(ctx, doc)
		if err != nil {
			return fmt.Errorf("chunk document %s: %w", doc.ID, err)
		}

		for _, chunk := range chunks {
			vec, err := r.embedder.EmbedDocument(ctx, chunk)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", chunk.ID, err)
			}
			embedding := &vector.Embedding{
				ID:     chunk.ID,
				Vector: vec,
				Text:   chunk.Content,
			}
			if err := r.store.AddEmbedding(ctx, embedding); err != nil {
				return fmt.Errorf("store chunk %s: %w", chunk.ID, err)
			}

			r.mu.Lock()
			r.chunks[chunk.ID] = chunk.Clone()
			r.mu.Unlock()
		}
		r.logger.Info("document indexed", "doc_id", doc.ID, "source", doc.Source, "chunks", len(chunks))
	}
	return nil
}

// Search embeds the query, fetches nearest neighbors and returns passages
// scoring at least scoreThreshold, best first, capped at n.
func (r *Retriever) Search(ctx context.Context, query string, n int, scoreThreshold float64) ([]Passage, error) {
	if n <= 0 {
		n = 3
	}
	queryVec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	topK := n * r.cfg.CandidateFactor
	hits, err := r.store.Search(ctx, queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	passages := make([]Passage, 0, len(hits))
	for _, hit := range hits {
		score := float64(vector.CosineSimilarity(queryVec, hit.Vector))
		if score < scoreThreshold {
			continue
		}
		passage := Passage{
			Text:  hit.Text,
			Score: score,
		}
		if chunk, ok := r.lookupChunk(hit.ID); ok {
			passage.Source = chunk.Source
			if passage.Source == "" {
				passage.Source = chunk.DocumentID
			}
		}
		passages = append(passages, passage)
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	if len(passages) > n {
		passages = passages[:n]
	}
	r.logger.Debug("knowledge search", "query_len", len(query), "hits", len(passages), "threshold", scoreThreshold)
	return passages, nil
}

func (r *Retriever) lookupChunk(id string) (document.Chunk, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chunk, ok := r.chunks[id]
	if !ok {
		return document.Chunk{}, false
	}
	return chunk.Clone(), true
}

// Clear drops all indexed state.
func (r *Retriever) Clear(ctx context.Context) error {
	if r.store != nil {
		if err := r.store.Clear(ctx); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = make(map[string]document.Chunk)
	return nil
}

// Count returns the number of chunks indexed.
func (r *Retriever) Count(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	return r.store.Count(ctx)
}
