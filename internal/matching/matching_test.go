package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/spigell/crewzy/internal/store"

	"go.uber.org/zap"
)

func seed(t *testing.T, docs ...store.Document) *store.MemoryStore {
	t.Helper()
	s := store.NewMemory(zap.NewNop())
	for _, doc := range docs {
		if _, err := s.Insert(context.Background(), store.Users, doc); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return s
}

func ids(t *testing.T, m *Matcher, category string, skills []string) []string {
	t.Helper()
	employees, err := m.Match(context.Background(), category, skills)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := make([]string, 0, len(employees))
	for _, e := range employees {
		out = append(out, e.ID)
	}
	return out
}

func TestMatchCategoryIsCaseInsensitive(t *testing.T) {
	s := seed(t,
		store.Document{"_id": "nurse", "subRole": "Nurse"},
		store.Document{"_id": "tech", "subRole": "Technician", "skills": []any{"ac repair"}},
	)

	got := ids(t, New(s, nil), "nurse", []string{})
	if len(got) != 1 || got[0] != "nurse" {
		t.Fatalf("expected only the nurse, got %v", got)
	}
}

func TestMatchSkills(t *testing.T) {
	s := seed(t,
		store.Document{"_id": "nurse", "subRole": "Nurse", "skills": []any{"first aid"}},
		store.Document{"_id": "tech", "subRole": "Technician", "skills": []any{"ac repair"}},
		store.Document{"_id": "elec", "subRole": "Electrician", "skills": []any{"wiring"}},
	)
	m := New(s, nil)

	got := ids(t, m, "Plumber", []string{"AC Repair", " Wiring "})
	if len(got) != 2 || got[0] != "tech" || got[1] != "elec" {
		t.Fatalf("expected tech and elec in store order, got %v", got)
	}

	if got := ids(t, m, "Plumber", nil); len(got) != 0 {
		t.Fatalf("expected no matches, got %v", got)
	}
}

func TestMatchCategoryIsLiteral(t *testing.T) {
	s := seed(t,
		store.Document{"_id": "a", "subRole": "C++ Developer"},
		store.Document{"_id": "b", "subRole": "CCC Developer"},
		store.Document{"_id": "c", "subRole": "Senior C++ Developer"},
	)

	got := ids(t, New(s, nil), "c++ developer", nil)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected exact literal match, got %v", got)
	}
}

func TestMatchSkipsUnmappableDocuments(t *testing.T) {
	s := seed(t,
		store.Document{"_id": "bad", "subRole": "Technician", "skills": map[string]any{"x": 1}},
		store.Document{"_id": "good", "subRole": "Technician", "coordinates": []any{"x", "y"}},
	)

	employees, err := New(s, nil).Match(context.Background(), "technician", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(employees) != 1 || employees[0].ID != "good" {
		t.Fatalf("expected only the mappable employee, got %+v", employees)
	}
	if employees[0].Point != nil {
		t.Fatal("expected malformed coordinates to be dropped")
	}
}

type failingFinder struct{ err error }

func (f failingFinder) Find(context.Context, string, store.Filter) ([]store.Document, error) {
	return nil, f.err
}

func TestMatchPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("store down")
	if _, err := New(failingFinder{err: boom}, nil).Match(context.Background(), "x", nil); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}
