package records

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spigell/crewzy/internal/store"
)

func TestEmployeeFromDocument(t *testing.T) {
	id := uuid.New()

	t.Run("full document", func(t *testing.T) {
		emp, issue, err := EmployeeFromDocument(store.Document{
			"_id":         id,
			"name":        " Ravi ",
			"subRole":     "Technician",
			"skills":      []any{"ac repair", "wiring"},
			"pincode":     110001,
			"coordinates": []any{77.0, 28.0},
			"password":    "secret",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if issue != nil {
			t.Fatalf("unexpected location issue: %v", issue.Err)
		}
		if emp.ID != id.String() || emp.Name != "Ravi" || emp.Category != "Technician" {
			t.Fatalf("unexpected employee: %+v", emp)
		}
		if emp.Pincode != "110001" {
			t.Fatalf("expected weakly typed pincode, got %q", emp.Pincode)
		}
		if len(emp.Skills) != 2 || emp.Skills[0] != "ac repair" {
			t.Fatalf("unexpected skills: %v", emp.Skills)
		}
		if emp.Point == nil || emp.Point.Lon != 77.0 || emp.Point.Lat != 28.0 {
			t.Fatalf("unexpected point: %+v", emp.Point)
		}
	})

	t.Run("malformed coordinates", func(t *testing.T) {
		emp, issue, err := EmployeeFromDocument(store.Document{
			"_id":         id,
			"coordinates": []any{"east", "north"},
			"eLoc":        "MMI000",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if issue == nil {
			t.Fatal("expected a location issue")
		}
		if emp.Point != nil {
			t.Fatalf("expected nil point, got %+v", emp.Point)
		}
		if !emp.Usable() || emp.RoutingToken() != "MMI000" {
			t.Fatalf("expected eLoc to stay usable, got %+v", emp.Location)
		}
	})

	t.Run("no location", func(t *testing.T) {
		emp, issue, err := EmployeeFromDocument(store.Document{"_id": "e1", "coordinates": []any{}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if issue != nil {
			t.Fatalf("empty coordinates are not an issue, got %v", issue.Err)
		}
		if emp.Usable() {
			t.Fatal("expected location to be unusable")
		}
		if emp.Skills == nil {
			t.Fatal("expected non-nil skills")
		}
	})

	t.Run("missing id", func(t *testing.T) {
		if _, _, err := EmployeeFromDocument(store.Document{"name": "ghost"}); err == nil {
			t.Fatal("expected error for missing _id")
		}
	})

	t.Run("wrong field type", func(t *testing.T) {
		if _, _, err := EmployeeFromDocument(store.Document{"_id": "e1", "skills": map[string]any{"a": 1}}); err == nil {
			t.Fatal("expected decode error")
		}
	})
}

func TestEmployeeJSONOmitsUnknownFields(t *testing.T) {
	emp, _, err := EmployeeFromDocument(store.Document{
		"_id":         "e1",
		"name":        "Ravi",
		"password":    "secret",
		"coordinates": []any{77.0, 28.0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body, err := json.Marshal(emp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(body)

	if strings.Contains(out, "secret") {
		t.Fatalf("password leaked: %s", out)
	}
	if !strings.Contains(out, `"coordinates":[77,28]`) {
		t.Fatalf("expected coordinates array, got %s", out)
	}
}

func TestRoutingToken(t *testing.T) {
	loc := Location{}
	if loc.RoutingToken() != "" {
		t.Fatal("expected empty token")
	}

	emp, _, err := EmployeeFromDocument(store.Document{"_id": "e1", "coordinates": []any{77.5, 28.25}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := emp.RoutingToken(); got != "77.5,28.25" {
		t.Fatalf("expected lon,lat token, got %q", got)
	}
}

func TestTaskAndUserFromDocument(t *testing.T) {
	assignee := uuid.New()

	task, err := TaskFromDocument(store.Document{
		"_id":          "t1",
		"name":         "Fix AC",
		"task":         "AC not cooling",
		"status":       "pending",
		"assigneeId":   assignee,
		"expectedDate": "2026-10-20T09:00:00Z",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.AssigneeID != assignee.String() {
		t.Fatalf("unexpected assignee: %q", task.AssigneeID)
	}
	if task.ExpectedDate == nil || task.ExpectedDate.Day() != 20 {
		t.Fatalf("unexpected expected date: %v", task.ExpectedDate)
	}

	user, err := UserFromDocument(store.Document{"_id": "u1", "role": " HR "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Role != "hr" {
		t.Fatalf("expected normalized role, got %q", user.Role)
	}
}
