package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spigell/crewzy/internal/remote"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		body       TEXT NOT NULL,
		UNIQUE (collection, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents (collection, seq)`,
}

// SQLiteStore persists JSON documents in a single SQLite table. Filters are
// evaluated in process over the collection, which keeps the query language
// identical to MemoryStore; employee pools are small.
type SQLiteStore struct {
	db      *sql.DB
	timeout time.Duration
	logger  *zap.Logger
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, timeout time.Duration, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One writer; modernc sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	logger.Debug("sqlite store opened", zap.String("path", path))

	return &SQLiteStore{db: db, timeout: timeout, logger: logger}, nil
}

// Insert upserts doc, assigning a fresh _id when it has none, and returns the id.
func (s *SQLiteStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
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
	id := doc.ID()

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document %s: %w", id, err)
	}

	_, err = remote.Do(ctx, "sqlite insert", s.timeout, func(ctx context.Context) (sql.Result, error) {
		return s.db.ExecContext(ctx,
			`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
			 ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body`,
			collection, id, string(body),
		)
	})
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}

	return id, nil
}

// Find returns the documents of collection matching filter, in insertion order.
func (s *SQLiteStore) Find(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	docs, err := s.load(ctx, collection)
	if err != nil {
		return nil, err
	}
	return find(docs, collection, filter, s.logger)
}

// Distinct returns the distinct string values of field in first-seen order.
func (s *SQLiteStore) Distinct(ctx context.Context, collection, field string) ([]string, error) {
	docs, err := s.load(ctx, collection)
	if err != nil {
		return nil, err
	}
	return distinct(docs, field), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) load(ctx context.Context, collection string) ([]Document, error) {
	if err := CheckCollection(collection); err != nil {
		return nil, err
	}

	docs, err := remote.Do(ctx, "sqlite find", s.timeout, func(ctx context.Context) ([]Document, error) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, body FROM documents WHERE collection = ? ORDER BY seq`, collection)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var docs []Document
		for rows.Next() {
			var id, body string
			if err := rows.Scan(&id, &body); err != nil {
				return nil, err
			}

			var doc Document
			if err := json.Unmarshal([]byte(body), &doc); err != nil {
				s.logger.Warn("skipping undecodable document",
					zap.String("collection", collection),
					zap.String("id", id),
					zap.Error(err),
				)
				continue
			}
			docs = append(docs, NormalizeDocument(doc))
		}

		return docs, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}

	return docs, nil
}
