package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MemoryStore keeps documents in insertion order. It backs tests and
// single-process demos.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Document
	logger      *zap.Logger
}

// NewMemory returns an empty in-memory store.
func NewMemory(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		collections: make(map[string][]Document),
		logger:      logger,
	}
}

// Insert stores doc, assigning a fresh _id when it has none, and returns the id.
func (m *MemoryStore) Insert(_ context.Context, collection string, doc Document) (string, error) {
	if err := CheckCollection(collection); err != nil {
		return "", err
	}

	doc = NormalizeDocument(doc.Clone())
	if doc == nil {
		doc = Document{}
	}
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = uuid.New()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := doc.ID()
	docs := m.collections[collection]
	for i, existing := range docs {
		if existing.ID() == id {
			docs[i] = doc
			return id, nil
		}
	}
	m.collections[collection] = append(docs, doc)

	return id, nil
}

// Find returns clones of the documents matching filter.
func (m *MemoryStore) Find(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	if err := CheckCollection(collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return find(m.collections[collection], collection, filter, m.logger)
}

// Distinct returns the distinct string values of field in first-seen order.
func (m *MemoryStore) Distinct(ctx context.Context, collection, field string) ([]string, error) {
	if err := CheckCollection(collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return distinct(m.collections[collection], field), nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
