// Package voyage adapts the Voyage AI embedding API to ai.Embedder.
package voyage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/crewzy/internal/logger"
	"github.com/spigell/crewzy/internal/remote"

	"github.com/austinfhunter/voyageai"
	"go.uber.org/zap"
)

const (
	defaultModel = "voyage-3.5-lite"
	providerName = "voyage"
)

type embedAPI interface {
	Embed(texts []string, model string, opts *voyageai.EmbeddingRequestOpts) (*voyageai.EmbeddingResponse, error)
}

// Options configures the Voyage embedder.
type Options struct {
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// Embedder generates embeddings with Voyage AI.
type Embedder struct {
	client     embedAPI
	model      string
	dimensions int
	timeout    time.Duration
	logger     *zap.Logger
}

// NewEmbedder creates a Voyage embedder.
func NewEmbedder(opts Options, log *zap.Logger) (*Embedder, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("voyage api key is required")
	}

	return newEmbedder(voyageai.NewClient(&voyageai.VoyageClientOpts{Key: apiKey}), opts, log), nil
}

func newEmbedder(client embedAPI, opts Options, log *zap.Logger) *Embedder {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	return &Embedder{
		client:     client,
		model:      model,
		dimensions: opts.Dimensions,
		timeout:    opts.Timeout,
		logger:     logger.WithCommonFields(log, providerName, model),
	}
}

// Embed returns the embedding vector of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("embedding input must not be empty")
	}

	opts := &voyageai.EmbeddingRequestOpts{}
	if e.dimensions > 0 {
		dimensions := e.dimensions
		opts.OutputDimension = &dimensions
	}

	// The voyage client takes no context; remote.Do enforces the timeout.
	resp, err := remote.Do(ctx, "voyage embed", e.timeout, func(context.Context) (*voyageai.EmbeddingResponse, error) {
		return e.client.Embed([]string{text}, e.model, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("could not get embedding: %w", err)
	}

	if resp == nil || len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("voyage api returned no embeddings")
	}

	e.logger.Debug("voyage embedding", zap.Int("dimensions", len(resp.Data[0].Embedding)))

	return resp.Data[0].Embedding, nil
}
