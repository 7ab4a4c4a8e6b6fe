package ai

import (
	"context"
)

// Generator sends a system instruction and a user message to a language
// model and returns its textual reply. The reply is untrusted.
type Generator interface {
	GenerateContent(ctx context.Context, systemInstruction, message string) (string, error)
	Model() string
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
