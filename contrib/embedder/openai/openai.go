// Package openai implements vector.Embedder against the OpenAI
// embeddings API. Any OpenAI-compatible endpoint works via BaseURL.
package openai

import (
	"context"
	"fmt"
	"os"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/mathsage/mathsage/errors"
	"github.com/mathsage/mathsage/vector"
)

const (
	defaultModel     = openaisdk.EmbeddingModelTextEmbedding3Small
	defaultDimension = 1536
)

// Config holds embedder configuration.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     openaisdk.EmbeddingModel
	Dimension int
}

// DefaultConfig reads the API key from OPENAI_API_KEY and uses
// text-embedding-3-small.
func DefaultConfig() Config {
	return Config{
		APIKey:    os.Getenv("OPENAI_API_KEY"),
		Model:     defaultModel,
		Dimension: defaultDimension,
	}
}

// Embedder implements vector.Embedder using OpenAI embeddings.
type Embedder struct {
	client    openaisdk.Client
	model     openaisdk.EmbeddingModel
	dimension int
}

var _ vector.Embedder = (*Embedder)(nil)

// New creates an OpenAI-backed embedder.
func New(config Config) (*Embedder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", errors.ErrInvalidInput)
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Dimension <= 0 {
		config.Dimension = defaultDimension
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Embedder{
		client:    openaisdk.NewClient(opts...),
		model:     config.Model,
		dimension: config.Dimension,
	}, nil
}

// Dimension returns the number of embedding dimensions.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Embed converts text to a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", errors.ErrGeneration)
	}
	return vectors[0], nil
}

// EmbedBatch converts multiple texts to embeddings in one request.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedBatch(ctx, texts)
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openaisdk.EmbeddingNewParams{
		Model: e.model,
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for i, emb := range resp.Data {
		out[i] = truncateVector(emb.Embedding, e.dimension)
	}
	return out, nil
}

// truncateVector fits the API's float64 vector into the configured
// dimension, zero-padding when the response is shorter.
func truncateVector(input []float64, expected int) []float32 {
	vec := make([]float32, expected)
	for i := 0; i < len(input) && i < expected; i++ {
		vec[i] = float32(input[i])
	}
	return vec
}
