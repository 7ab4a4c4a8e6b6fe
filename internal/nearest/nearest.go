// Package nearest picks the candidate closest to a customer.
package nearest

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spigell/crewzy/internal/geo"
	"github.com/spigell/crewzy/internal/records"
	"github.com/spigell/crewzy/internal/remote"

	"go.uber.org/zap"
)

// ErrNoCustomerLocation is returned when the customer location is empty.
var ErrNoCustomerLocation = errors.New("customer location is required")

// Router returns driving distances in kilometers between routing tokens.
type Router interface {
	Distance(ctx context.Context, origin, destination string) (float64, error)
}

// Resolver selects the nearest candidate. Router may be nil, in which case
// only straight-line distances between coordinates are used.
type Resolver struct {
	router Router
	logger *zap.Logger
}

// New constructs a Resolver.
func New(router Router, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{router: router, logger: logger}
}

// RoutingEnabled reports whether token locations can be resolved.
func (r *Resolver) RoutingEnabled() bool {
	return r.router != nil
}

// Resolve returns the candidate with the strictly smallest distance to
// customer; on ties the first one wins. Candidates without a usable location
// or with invalid coordinates are skipped, as are candidates whose routing
// lookup fails. Timeouts and cancellation abort the whole resolution.
// A nil employee with a nil error means nobody could be placed.
func (r *Resolver) Resolve(ctx context.Context, customer records.Location, candidates []records.Employee) (*records.Employee, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if !customer.Usable() {
		return nil, ErrNoCustomerLocation
	}
	if customer.Point != nil {
		if err := customer.Point.Validate(); err != nil {
			return nil, fmt.Errorf("customer location: %w", err)
		}
	}

	var (
		nearest *records.Employee
		best    = math.Inf(1)
		skipped int
	)

	for i := range candidates {
		candidate := &candidates[i]

		distance, ok, err := r.distance(ctx, customer, candidate)
		if err != nil {
			return nil, err
		}
		if !ok {
			skipped++
			continue
		}

		if distance < best {
			best = distance
			nearest = candidate
		}
	}

	if nearest == nil {
		r.logger.Debug("no candidate could be placed",
			zap.Int("candidates", len(candidates)),
			zap.Int("skipped", skipped),
		)
		return nil, nil
	}

	r.logger.Debug("nearest employee",
		zap.String("id", nearest.ID),
		zap.Float64("km", best),
		zap.Int("candidates", len(candidates)),
		zap.Int("skipped", skipped),
	)

	picked := *nearest
	return &picked, nil
}

// distance returns ok=false when the candidate must be skipped.
func (r *Resolver) distance(ctx context.Context, customer records.Location, candidate *records.Employee) (float64, bool, error) {
	if !candidate.Usable() {
		r.logger.Debug("skipping candidate without location", zap.String("id", candidate.ID))
		return 0, false, nil
	}

	if customer.Point != nil && candidate.Point != nil {
		km, err := geo.Haversine(*customer.Point, *candidate.Point)
		if err != nil {
			r.logger.Warn("skipping candidate with invalid coordinates", zap.String("id", candidate.ID), zap.Error(err))
			return 0, false, nil
		}
		return km, true, nil
	}

	if r.router == nil {
		r.logger.Debug("skipping candidate: no routing client for token location", zap.String("id", candidate.ID))
		return 0, false, nil
	}

	km, err := r.router.Distance(ctx, customer.RoutingToken(), candidate.RoutingToken())
	if err != nil {
		if remote.IsFatal(err) {
			return 0, false, fmt.Errorf("routing distance for %s: %w", candidate.ID, err)
		}
		r.logger.Warn("skipping candidate after routing failure", zap.String("id", candidate.ID), zap.Error(err))
		return 0, false, nil
	}
	if math.IsNaN(km) || km < 0 {
		r.logger.Warn("skipping candidate with unusable routing distance", zap.String("id", candidate.ID), zap.Float64("km", km))
		return 0, false, nil
	}

	return km, true, nil
}
