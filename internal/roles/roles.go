// Package roles reconciles generated category labels with the labels that
// actually exist in the employee pool.
package roles

import (
	"context"
	"fmt"
	"sort"

	"github.com/spigell/crewzy/internal/similarity"
	"github.com/spigell/crewzy/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CategoryField is the employee field holding the category label.
const CategoryField = "subRole"

const defaultConcurrency = 4

// Labels returns the distinct category labels of the employee pool.
type Labels interface {
	Distinct(ctx context.Context, collection, field string) ([]string, error)
}

// Embedder is the part of similarity.Evaluator the normalizer needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Normalizer maps a candidate label to the closest pool label.
type Normalizer struct {
	labels      Labels
	embedder    Embedder
	concurrency int
	logger      *zap.Logger
}

// Option tunes a Normalizer.
type Option func(*Normalizer)

// WithConcurrency bounds how many label embeddings are fetched at once.
func WithConcurrency(n int) Option {
	return func(norm *Normalizer) {
		if n > 0 {
			norm.concurrency = n
		}
	}
}

// New constructs a Normalizer.
func New(labels Labels, embedder Embedder, logger *zap.Logger, opts ...Option) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}

	n := &Normalizer{
		labels:      labels,
		embedder:    embedder,
		concurrency: defaultConcurrency,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Normalize returns the pool label most similar to candidate.
//
// With no labels the candidate is returned unchanged; with exactly one label
// that label is returned without any embedding call. Labels are scored in
// lexical order and only a strictly greater similarity replaces the current
// best, so ties go to the lexically first label.
func (n *Normalizer) Normalize(ctx context.Context, candidate string) (string, error) {
	labels, err := n.labels.Distinct(ctx, store.Users, CategoryField)
	if err != nil {
		return "", fmt.Errorf("list %s labels: %w", CategoryField, err)
	}

	switch len(labels) {
	case 0:
		n.logger.Debug("no pool labels; keeping candidate", zap.String("candidate", candidate))
		return candidate, nil
	case 1:
		return labels[0], nil
	}

	labels = append([]string(nil), labels...)
	sort.Strings(labels)

	target, err := n.embedder.Embed(ctx, candidate)
	if err != nil {
		return "", err
	}

	scores, err := n.score(ctx, target, labels)
	if err != nil {
		return "", err
	}

	best := labels[0]
	bestScore := scores[0]
	for i := 1; i < len(labels); i++ {
		if scores[i] > bestScore {
			best = labels[i]
			bestScore = scores[i]
		}
	}

	n.logger.Debug("normalized category",
		zap.String("candidate", candidate),
		zap.String("label", best),
		zap.Float64("similarity", bestScore),
		zap.Int("labels", len(labels)),
	)

	return best, nil
}

// score embeds every label concurrently. Results are stored by index, so
// the scan in Normalize sees them in lexical order regardless of arrival.
func (n *Normalizer) score(ctx context.Context, target []float32, labels []string) ([]float64, error) {
	scores := make([]float64, len(labels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.concurrency)

	for i, label := range labels {
		g.Go(func() error {
			vec, err := n.embedder.Embed(gctx, label)
			if err != nil {
				return err
			}
			sim, err := similarity.Cosine(target, vec)
			if err != nil {
				return fmt.Errorf("score label %q: %w", label, err)
			}
			scores[i] = sim
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return scores, nil
}
