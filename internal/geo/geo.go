// Package geo computes great-circle distances between coordinate pairs.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EarthRadiusKM is the mean Earth radius used by Haversine.
const EarthRadiusKM = 6371.0

// ErrInvalidCoordinate is returned for non-numeric or out-of-range coordinates.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Point is a [longitude, latitude] pair in degrees.
type Point struct {
	Lon float64
	Lat float64
}

// MarshalJSON encodes the point in the store's [lon, lat] array form.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lon, p.Lat})
}

// UnmarshalJSON accepts the [lon, lat] array form.
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoordinate, err)
	}
	parsed, err := ParsePoint(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// String renders the point as "lon,lat", the form routing APIs accept.
func (p Point) String() string {
	return strconv.FormatFloat(p.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}

// Validate reports whether the point holds finite, in-range degrees.
func (p Point) Validate() error {
	if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) || math.IsInf(p.Lon, 0) || math.IsInf(p.Lat, 0) {
		return fmt.Errorf("%w: non-finite value in %v", ErrInvalidCoordinate, [2]float64{p.Lon, p.Lat})
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, p.Lon)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, p.Lat)
	}
	return nil
}

// Haversine returns the great-circle distance between a and b in kilometers.
func Haversine(a, b Point) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	phi1 := radians(a.Lat)
	phi2 := radians(b.Lat)
	dPhi := radians(b.Lat - a.Lat)
	dLambda := radians(b.Lon - a.Lon)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKM * c, nil
}

// ParsePoint converts a loosely typed [lon, lat] value, as found in store
// documents or request bodies, into a Point.
func ParsePoint(v any) (Point, error) {
	var pair []any
	switch val := v.(type) {
	case Point:
		return val, val.Validate()
	case *Point:
		if val == nil {
			return Point{}, fmt.Errorf("%w: nil point", ErrInvalidCoordinate)
		}
		return *val, val.Validate()
	case []float64:
		for _, f := range val {
			pair = append(pair, f)
		}
	case [2]float64:
		pair = []any{val[0], val[1]}
	case []any:
		pair = val
	default:
		return Point{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidCoordinate, v)
	}

	if len(pair) != 2 {
		return Point{}, fmt.Errorf("%w: expected 2 values, got %d", ErrInvalidCoordinate, len(pair))
	}

	lon, err := toFloat(pair[0])
	if err != nil {
		return Point{}, err
	}
	lat, err := toFloat(pair[1])
	if err != nil {
		return Point{}, err
	}

	p := Point{Lon: lon, Lat: lat}
	return p, p.Validate()
}

func toFloat(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidCoordinate, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not numeric", ErrInvalidCoordinate, val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %T is not numeric", ErrInvalidCoordinate, v)
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
