// Package store is the read-mostly document store behind users, tasks,
// companies and attendance records.
package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"go.uber.org/zap"
)

// Supported collections.
const (
	Users       = "users"
	Tasks       = "tasks"
	Companies   = "companies"
	Attendances = "attendances"
)

// Collections lists every collection the store serves.
var Collections = []string{Users, Tasks, Companies, Attendances}

var (
	// ErrUnknownCollection is returned for collections outside Collections.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrInvalidFilter is returned for unsupported operators and malformed operands.
	ErrInvalidFilter = errors.New("invalid filter")
)

// Document is a raw, schema-less record.
type Document map[string]any

// Filter is a query document: field equality plus the $or, $and, $in, $eq,
// $ne, $exists and $regex operators.
type Filter map[string]any

// Store finds documents by filter.
type Store interface {
	Find(ctx context.Context, collection string, filter Filter) ([]Document, error)
	Distinct(ctx context.Context, collection, field string) ([]string, error)
	Close() error
}

// CheckCollection validates a collection name.
func CheckCollection(name string) error {
	for _, c := range Collections {
		if c == name {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownCollection, name)
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return maps.Clone(d)
}

// ID returns the document id in its string form.
func (d Document) ID() string {
	return IDString(d["_id"])
}

// find applies filter to docs, which must already be id-normalized.
func find(docs []Document, collection string, filter Filter, logger *zap.Logger) ([]Document, error) {
	coerced, coercions := CoerceIDs(filter)
	logCoercions(logger, collection, coercions)

	matched := make([]Document, 0)
	for _, doc := range docs {
		ok, err := Match(doc, coerced)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidFilter, collection, err)
		}
		if ok {
			matched = append(matched, doc.Clone())
		}
	}

	logger.Debug("store find",
		zap.String("collection", collection),
		zap.Any("filter", coerced),
		zap.Int("scanned", len(docs)),
		zap.Int("matched", len(matched)),
	)

	return matched, nil
}

// distinct collects non-empty string values of field in first-seen order.
// Array values contribute each element.
func distinct(docs []Document, field string) []string {
	seen := make(map[string]struct{})
	values := make([]string, 0)

	add := func(v any) {
		s, ok := v.(string)
		if !ok {
			return
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		values = append(values, s)
	}

	for _, doc := range docs {
		v, ok := lookup(doc, field)
		if !ok {
			continue
		}
		if list, isList := toList(v); isList {
			for _, item := range list {
				add(item)
			}
			continue
		}
		add(v)
	}

	return values
}
