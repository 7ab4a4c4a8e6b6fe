// Package similarity scores text labels by the cosine similarity of their embeddings.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spigell/crewzy/internal/ai"
)

// ErrEmbeddingUnavailable wraps every failure to obtain a usable embedding.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// Evaluator computes label similarity through an embedding provider.
// Nothing is cached: every call fetches fresh vectors.
type Evaluator struct {
	embedder ai.Embedder
}

// New returns an Evaluator backed by embedder.
func New(embedder ai.Embedder) *Evaluator {
	return &Evaluator{embedder: embedder}
}

// Embed fetches the vector for text.
func (e *Evaluator) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", ErrEmbeddingUnavailable)
	}

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrEmbeddingUnavailable, text, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: %q: empty vector", ErrEmbeddingUnavailable, text)
	}

	return vec, nil
}

// Similarity embeds a and b and returns their cosine similarity.
func (e *Evaluator) Similarity(ctx context.Context, a, b string) (float64, error) {
	va, err := e.Embed(ctx, a)
	if err != nil {
		return 0, err
	}

	vb, err := e.Embed(ctx, b)
	if err != nil {
		return 0, err
	}

	return Cosine(va, vb)
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or with zero magnitude are reported as malformed provider output.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: dimension mismatch %d != %d", ErrEmbeddingUnavailable, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: zero-magnitude vector", ErrEmbeddingUnavailable)
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0, fmt.Errorf("%w: similarity is not a number", ErrEmbeddingUnavailable)
	}

	return sim, nil
}
