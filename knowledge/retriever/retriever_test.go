package retriever

import (
	"context"
	"strings"
	"testing"

	"github.com/mathsage/mathsage/contrib/vector/inmemory"
	"github.com/mathsage/mathsage/knowledge/chunking"
	"github.com/mathsage/mathsage/knowledge/document"
	"github.com/mathsage/mathsage/knowledge/embedder"
)

// keywordEmbedder produces deterministic sparse vectors for tests.
type keywordEmbedder struct{}

var keywordSpace = []string{"integral", "derivative", "matrix", "probability"}

func (k *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(keywordSpace))
	lower := strings.ToLower(text)
	for idx, kw := range keywordSpace {
		if strings.Contains(lower, kw) {
			vec[idx] = 1
		}
	}
	return vec, nil
}

func (k *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := k.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (k *keywordEmbedder) Dimension() int { return len(keywordSpace) }

func newTestRetriever() *Retriever {
	return New(
		inmemory.New(),
		embedder.NewVectorAdapter(&keywordEmbedder{}),
		chunking.NewSimpleChunker(),
	)
}

func TestSearchReturnsPassagesAboveThreshold(t *testing.T) {
	ctx := context.Background()
	r := newTestRetriever()

	err := r.IndexDocuments(ctx,
		document.Document{Source: "calculus.txt", Content: "The integral of x^2 is x^3/3."},
		document.Document{Source: "linear.txt", Content: "A matrix is a rectangular array."},
	)
	if err != nil {
		t.Fatalf("IndexDocuments error: %v", err)
	}

	passages, err := r.Search(ctx, "how to compute an integral", 3, 0.5)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(passages) != 1 {
		t.Fatalf("expected 1 passage above threshold, got %d", len(passages))
	}
	if passages[0].Source != "calculus.txt" {
		t.Errorf("source = %q, want calculus.txt", passages[0].Source)
	}
	if passages[0].Score < 0.5 {
		t.Errorf("score %f below requested threshold", passages[0].Score)
	}
}

func TestSearchOrdersByDescendingScore(t *testing.T) {
	ctx := context.Background()
	r := newTestRetriever()

	err := r.IndexDocuments(ctx,
		document.Document{Source: "both.txt", Content: "integral and derivative together"},
		document.Document{Source: "one.txt", Content: "integral alone here"},
	)
	if err != nil {
		t.Fatalf("IndexDocuments error: %v", err)
	}

	passages, err := r.Search(ctx, "integral derivative", 3, 0.1)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(passages) < 2 {
		t.Fatalf("expected at least 2 passages, got %d", len(passages))
	}
	for i := 1; i < len(passages); i++ {
		if passages[i].Score > passages[i-1].Score {
			t.Fatalf("passages not sorted: %f after %f", passages[i].Score, passages[i-1].Score)
		}
	}
	if passages[0].Source != "both.txt" {
		t.Errorf("best match = %q, want both.txt", passages[0].Source)
	}
}

func TestSearchCapsAtN(t *testing.T) {
	ctx := context.Background()
	r := newTestRetriever()

	for i := 0; i < 5; i++ {
		if err := r.IndexDocuments(ctx, document.Document{Source: "p.txt", Content: "probability notes"}); err != nil {
			t.Fatalf("IndexDocuments error: %v", err)
		}
	}

	passages, err := r.Search(ctx, "probability", 2, 0.1)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(passages) > 2 {
		t.Fatalf("expected at most 2 passages, got %d", len(passages))
	}
}

func TestClearAndCount(t *testing.T) {
	ctx := context.Background()
	r := newTestRetriever()

	if err := r.IndexDocuments(ctx, document.Document{Content: "matrix determinant"}); err != nil {
		t.Fatalf("IndexDocuments error: %v", err)
	}
	count, err := r.Count(ctx)
	if err != nil || count == 0 {
		t.Fatalf("Count = %d, err = %v; want > 0", count, err)
	}

	if err := r.Clear(ctx); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	count, _ = r.Count(ctx)
	if count != 0 {
		t.Fatalf("Count after Clear = %d, want 0", count)
	}
}
