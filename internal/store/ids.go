package store

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IDCoercion records what happened to one id-like filter value.
// Exactly one of ID (Coerced) or Raw is meaningful.
type IDCoercion struct {
	Key     string
	Raw     string
	ID      uuid.UUID
	Coerced bool
	Err     error
}

// IsIDKey reports whether a field name follows the id naming convention:
// "_id", a "_id" suffix, or a camelCase "Id" suffix such as assigneeId.
func IsIDKey(key string) bool {
	if strings.HasSuffix(key, "_id") {
		return true
	}
	return len(key) > 2 && strings.HasSuffix(key, "Id")
}

// CoerceIDs returns a copy of filter with string values under id-like keys
// converted to uuid.UUID, the store's native id type. Values that do not
// parse stay raw strings and are reported with their parse error. Operands
// of $eq, $ne and $in under id keys are coerced too, and $or and $and
// branches are coerced recursively.
func CoerceIDs(filter Filter) (Filter, []IDCoercion) {
	if filter == nil {
		return Filter{}, nil
	}

	out := make(Filter, len(filter))
	var coercions []IDCoercion

	for key, value := range filter {
		switch {
		case key == "$or" || key == "$and":
			list, ok := toList(value)
			if !ok {
				out[key] = value
				continue
			}
			branches := make([]any, 0, len(list))
			for _, item := range list {
				sub, ok := asFilter(item)
				if !ok {
					branches = append(branches, item)
					continue
				}
				coerced, nested := CoerceIDs(sub)
				coercions = append(coercions, nested...)
				branches = append(branches, coerced)
			}
			out[key] = branches
		case IsIDKey(key):
			if ops, ok := operators(value); ok {
				coerced, nested := coerceOperands(key, ops)
				coercions = append(coercions, nested...)
				out[key] = coerced
				continue
			}
			s, ok := value.(string)
			if !ok {
				out[key] = value
				continue
			}
			id, c := coerceID(key, s)
			coercions = append(coercions, c)
			out[key] = id
		default:
			out[key] = value
		}
	}

	return out, coercions
}

// coerceOperands converts string operands of the equality operators under an
// id key. Other operators are copied unchanged.
func coerceOperands(key string, ops map[string]any) (Filter, []IDCoercion) {
	out := make(Filter, len(ops))
	var coercions []IDCoercion

	for op, operand := range ops {
		switch op {
		case "$eq", "$ne":
			s, ok := operand.(string)
			if !ok {
				out[op] = operand
				continue
			}
			id, c := coerceID(key, s)
			coercions = append(coercions, c)
			out[op] = id
		case "$in":
			list, ok := toList(operand)
			if !ok {
				out[op] = operand
				continue
			}
			values := make([]any, 0, len(list))
			for _, item := range list {
				s, ok := item.(string)
				if !ok {
					values = append(values, item)
					continue
				}
				id, c := coerceID(key, s)
				coercions = append(coercions, c)
				values = append(values, id)
			}
			out[op] = values
		default:
			out[op] = operand
		}
	}

	return out, coercions
}

// coerceID parses s as a uuid. On failure the raw string is returned.
func coerceID(key, s string) (any, IDCoercion) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return s, IDCoercion{Key: key, Raw: s, Err: err}
	}
	return id, IDCoercion{Key: key, ID: id, Coerced: true}
}

// NormalizeDocument converts string values under id-like keys to uuid.UUID
// in place, so stored documents compare equal to coerced filters.
func NormalizeDocument(doc Document) Document {
	for key, value := range doc {
		if !IsIDKey(key) {
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		if id, err := uuid.Parse(s); err == nil {
			doc[key] = id
		}
	}
	return doc
}

// IDString renders an id value of any supported type as a string.
func IDString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case uuid.UUID:
		return id.String()
	case string:
		return id
	case fmt.Stringer:
		return id.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func logCoercions(logger *zap.Logger, collection string, coercions []IDCoercion) {
	for _, c := range coercions {
		if c.Coerced {
			logger.Debug("coerced id filter value",
				zap.String("collection", collection),
				zap.String("key", c.Key),
				zap.String("id", c.ID.String()),
			)
			continue
		}
		logger.Warn("id filter value kept as raw string",
			zap.String("collection", collection),
			zap.String("key", c.Key),
			zap.String("value", c.Raw),
			zap.Error(c.Err),
		)
	}
}
