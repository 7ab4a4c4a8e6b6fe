// Package matching finds employees whose category or skills fit a task.
package matching

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/spigell/crewzy/internal/records"
	"github.com/spigell/crewzy/internal/store"

	"go.uber.org/zap"
)

// Finder is the store query the matcher runs.
type Finder interface {
	Find(ctx context.Context, collection string, filter store.Filter) ([]store.Document, error)
}

// Matcher queries the employee pool.
type Matcher struct {
	finder Finder
	logger *zap.Logger
}

// New constructs a Matcher.
func New(finder Finder, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{finder: finder, logger: logger}
}

// Match returns every employee whose category equals category ignoring case,
// or who has at least one of skills (compared lower-cased). The order is the
// store's. Documents that cannot be mapped are skipped.
func (m *Matcher) Match(ctx context.Context, category string, skills []string) ([]records.Employee, error) {
	filter := Filter(category, skills)

	docs, err := m.finder.Find(ctx, store.Users, filter)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}

	employees := make([]records.Employee, 0, len(docs))
	for _, doc := range docs {
		emp, issue, err := records.EmployeeFromDocument(doc)
		if err != nil {
			m.logger.Warn("skipping unmappable employee", zap.String("id", doc.ID()), zap.Error(err))
			continue
		}
		if issue != nil {
			m.logger.Warn("employee has malformed coordinates", zap.String("id", emp.ID), zap.Error(issue.Err))
		}
		employees = append(employees, emp)
	}

	m.logger.Debug("candidates matched",
		zap.String("category", category),
		zap.Strings("skills", skills),
		zap.Int("matched", len(employees)),
	)

	return employees, nil
}

// Filter builds the candidate query. The category is matched as a literal,
// anchored, case-insensitive regular expression.
func Filter(category string, skills []string) store.Filter {
	lowered := make([]string, 0, len(skills))
	for _, s := range skills {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			lowered = append(lowered, s)
		}
	}

	return store.Filter{"$or": []store.Filter{
		{"subRole": map[string]any{
			"$regex":   "^" + regexp.QuoteMeta(strings.TrimSpace(category)) + "$",
			"$options": "i",
		}},
		{"skills": map[string]any{"$in": lowered}},
	}}
}
