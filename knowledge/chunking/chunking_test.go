package chunking

import (
	"context"
	"strings"
	"testing"

	"github.com/mathsage/mathsage/knowledge/document"
)

func TestSimpleChunkerSplitsBySeparator(t *testing.T) {
	chunker := NewSimpleChunker(WithChunkSize(50), WithOverlap(10))
	doc := document.Document{
		Source:  "algebra.txt",
		Content: "A polynomial is a sum of terms.\n\nEach term has a coefficient.",
	}

	chunks, err := chunker.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("Chunk error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.Source != "algebra.txt" {
			t.Errorf("chunk source = %q, want algebra.txt", c.Source)
		}
		if c.DocumentID == "" || c.ID == "" {
			t.Error("chunk must carry document and chunk IDs")
		}
	}
}

func TestSimpleChunkerWindowsLongParagraphs(t *testing.T) {
	chunker := NewSimpleChunker(WithChunkSize(100), WithOverlap(20))
	doc := document.Document{Content: strings.Repeat("derivative ", 40)}

	chunks, err := chunker.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("Chunk error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected windowing to produce multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Content) > 100 {
			t.Errorf("chunk exceeds size limit: %d chars", len(c.Content))
		}
	}
}

func TestSimpleChunkerEmptyDocument(t *testing.T) {
	chunker := NewSimpleChunker()
	chunks, err := chunker.Chunk(context.Background(), document.Document{Content: ""})
	if err != nil {
		t.Fatalf("Chunk error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("empty document should still yield one chunk, got %d", len(chunks))
	}
}
