package geo

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestHaversineIdentity(t *testing.T) {
	t.Parallel()

	points := []Point{
		{Lon: 0, Lat: 0},
		{Lon: 77.01, Lat: 28.01},
		{Lon: -122.4194, Lat: 37.7749},
		{Lon: 180, Lat: -90},
	}

	for _, p := range points {
		d, err := Haversine(p, p)
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", p, err)
		}
		if d != 0 {
			t.Fatalf("expected zero distance for %v, got %v", p, d)
		}
	}
}

func TestHaversineSymmetry(t *testing.T) {
	t.Parallel()

	pairs := [][2]Point{
		{{Lon: 0, Lat: 0}, {Lon: 0, Lat: 1}},
		{{Lon: 77.0, Lat: 28.0}, {Lon: 77.01, Lat: 28.01}},
		{{Lon: 2.3522, Lat: 48.8566}, {Lon: -0.1276, Lat: 51.5072}},
	}

	for _, pair := range pairs {
		ab, err := Haversine(pair[0], pair[1])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ba, err := Haversine(pair[1], pair[0])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(ab-ba) > 1e-9 {
			t.Fatalf("expected symmetric distance, got %v and %v", ab, ba)
		}
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	t.Parallel()

	d, err := Haversine(Point{Lon: 0, Lat: 0}, Point{Lon: 0, Lat: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(d-111.19) > 0.5 {
		t.Fatalf("expected ~111.19 km, got %v", d)
	}
}

func TestHaversineRejectsInvalidCoordinates(t *testing.T) {
	t.Parallel()

	cases := []Point{
		{Lon: math.NaN(), Lat: 0},
		{Lon: 0, Lat: 91},
		{Lon: -181, Lat: 0},
		{Lon: math.Inf(1), Lat: 0},
	}

	for _, p := range cases {
		if _, err := Haversine(Point{}, p); !errors.Is(err, ErrInvalidCoordinate) {
			t.Fatalf("expected ErrInvalidCoordinate for %v, got %v", p, err)
		}
	}
}

func TestParsePoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   any
		want    Point
		wantErr bool
	}{
		{name: "float slice", input: []float64{77.0, 28.0}, want: Point{Lon: 77, Lat: 28}},
		{name: "json array", input: []any{77.01, 28.01}, want: Point{Lon: 77.01, Lat: 28.01}},
		{name: "numeric strings", input: []any{" 77.5", "28.5 "}, want: Point{Lon: 77.5, Lat: 28.5}},
		{name: "json numbers", input: []any{json.Number("1"), json.Number("2")}, want: Point{Lon: 1, Lat: 2}},
		{name: "empty", input: []any{}, wantErr: true},
		{name: "single value", input: []float64{1}, wantErr: true},
		{name: "non numeric", input: []any{"east", "north"}, wantErr: true},
		{name: "bool", input: []any{true, 1.0}, wantErr: true},
		{name: "nil", input: nil, wantErr: true},
		{name: "string", input: "77,28", wantErr: true},
		{name: "out of range", input: []float64{200, 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePoint(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCoordinate) {
					t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPointJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Point{Lon: 77, Lat: 28.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "[77,28.5]" {
		t.Fatalf("unexpected encoding: %s", data)
	}

	var p Point
	if err := json.Unmarshal([]byte(`["77.01", 28.01]`), &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lon != 77.01 || p.Lat != 28.01 {
		t.Fatalf("unexpected point: %v", p)
	}

	if err := json.Unmarshal([]byte(`{"lat": 1}`), &p); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}

	if got := (Point{Lon: 77.01, Lat: 28}).String(); got != "77.01,28" {
		t.Fatalf("unexpected string form: %q", got)
	}
}
