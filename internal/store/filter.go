package store

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Match reports whether doc satisfies filter. An empty filter matches
// everything. Unsupported operators and invalid regular expressions are errors.
func Match(doc Document, filter Filter) (bool, error) {
	for key, cond := range filter {
		var (
			ok  bool
			err error
		)

		switch key {
		case "$or":
			ok, err = matchLogical(doc, cond, false)
		case "$and":
			ok, err = matchLogical(doc, cond, true)
		default:
			if strings.HasPrefix(key, "$") {
				return false, fmt.Errorf("unsupported top-level operator %q", key)
			}
			value, present := lookup(doc, key)
			ok, err = matchField(value, present, cond)
		}

		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	return true, nil
}

func matchLogical(doc Document, cond any, all bool) (bool, error) {
	list, ok := toList(cond)
	if !ok || len(list) == 0 {
		return false, fmt.Errorf("logical operator expects a non-empty list, got %T", cond)
	}

	for _, item := range list {
		sub, ok := asFilter(item)
		if !ok {
			return false, fmt.Errorf("logical operator branch must be a document, got %T", item)
		}
		matched, err := Match(doc, sub)
		if err != nil {
			return false, err
		}
		if all && !matched {
			return false, nil
		}
		if !all && matched {
			return true, nil
		}
	}

	return all, nil
}

func matchField(value any, present bool, cond any) (bool, error) {
	ops, isOps := operators(cond)
	if !isOps {
		return present && equalsAny(value, cond), nil
	}

	for op, arg := range ops {
		var ok bool
		switch op {
		case "$eq":
			ok = present && equalsAny(value, arg)
		case "$ne":
			ok = !present || !equalsAny(value, arg)
		case "$in":
			list, isList := toList(arg)
			if !isList {
				return false, fmt.Errorf("$in expects a list, got %T", arg)
			}
			for _, want := range list {
				if present && equalsAny(value, want) {
					ok = true
					break
				}
			}
		case "$exists":
			want, isBool := arg.(bool)
			if !isBool {
				return false, fmt.Errorf("$exists expects a bool, got %T", arg)
			}
			ok = present == want
		case "$regex":
			re, err := compileRegex(arg, ops["$options"])
			if err != nil {
				return false, err
			}
			ok = present && matchesRegex(value, re)
		case "$options":
			continue
		default:
			return false, fmt.Errorf("unsupported operator %q", op)
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}

func compileRegex(pattern, options any) (*regexp.Regexp, error) {
	p, ok := pattern.(string)
	if !ok {
		return nil, fmt.Errorf("$regex expects a string, got %T", pattern)
	}

	if opts, ok := options.(string); ok && strings.Contains(opts, "i") {
		p = "(?i)" + p
	}

	re, err := regexp.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("invalid $regex: %w", err)
	}
	return re, nil
}

func matchesRegex(value any, re *regexp.Regexp) bool {
	if list, ok := toList(value); ok {
		for _, item := range list {
			if s, isString := item.(string); isString && re.MatchString(s) {
				return true
			}
		}
		return false
	}
	s, ok := value.(string)
	return ok && re.MatchString(s)
}

// equalsAny compares value to want; array values match when any element does.
func equalsAny(value, want any) bool {
	if list, ok := toList(value); ok {
		if _, wantList := toList(want); !wantList {
			for _, item := range list {
				if equal(item, want) {
					return true
				}
			}
			return false
		}
	}
	return equal(value, want)
}

func equal(a, b any) bool {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case uuid.UUID:
		bv, ok := b.(uuid.UUID)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}

	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// operators returns cond as an operator map when every key starts with "$".
func operators(cond any) (map[string]any, bool) {
	m, ok := asFilter(cond)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for key := range m {
		if !strings.HasPrefix(key, "$") {
			return nil, false
		}
	}
	return m, true
}

func asFilter(v any) (Filter, bool) {
	switch m := v.(type) {
	case Filter:
		return m, true
	case map[string]any:
		return Filter(m), true
	case Document:
		return Filter(m), true
	}
	return nil, false
}

// toList converts any slice except []byte into []any. Arrays such as
// uuid.UUID are scalars here.
func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []byte:
		return nil, false
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// lookup resolves a possibly dotted field path.
func lookup(doc Document, path string) (any, bool) {
	var current any = map[string]any(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := asFilter(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
