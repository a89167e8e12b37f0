package search

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/easydom/hellosure/internal/log"
)

// Embedder wraps a Genkit embedder, producing pgvector vectors at the
// dimensionality the documents schema expects.
type Embedder struct {
	embedder ai.Embedder
	logger   log.Logger
}

// NewEmbedder creates an Embedder. The underlying ai.Embedder must be safe
// for concurrent use.
func NewEmbedder(embedder ai.Embedder, logger log.Logger) (*Embedder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Embedder{embedder: embedder, logger: logger}, nil
}

// Embed converts text into a dense vector.
func (e *Embedder) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := int32(VectorDimension)
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
