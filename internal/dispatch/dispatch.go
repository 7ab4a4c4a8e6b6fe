// Package dispatch runs the classify, match and resolve pipeline that
// assigns a customer task to the nearest qualified employee.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/crewzy/internal/classifier"
	"github.com/spigell/crewzy/internal/logger"
	"github.com/spigell/crewzy/internal/metrics"
	"github.com/spigell/crewzy/internal/records"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Stage names.
const (
	StageClassify = "classify"
	StageMatch    = "match"
	StageResolve  = "resolve"
)

const tracerName = "github.com/spigell/crewzy/internal/dispatch"

// ErrInvalidRequest is returned before any stage runs.
var ErrInvalidRequest = errors.New("invalid dispatch request")

// Classifier produces the skill profile of a task.
type Classifier interface {
	Classify(ctx context.Context, description string) (classifier.ClassifiedTask, error)
}

// Matcher lists the employees qualified for a skill profile.
type Matcher interface {
	Match(ctx context.Context, category string, skills []string) ([]records.Employee, error)
}

// Resolver picks the nearest candidate.
type Resolver interface {
	Resolve(ctx context.Context, customer records.Location, candidates []records.Employee) (*records.Employee, error)
}

// Request is one customer task.
type Request struct {
	CustomerName     string
	CustomerNumber   string
	CustomerLocation records.Location
	TaskDescription  string
}

// Result is the outcome of a dispatch. AssignedEmployee is nil when nobody
// could be placed.
type Result struct {
	RequestID        string                    `json:"-"`
	Task             classifier.ClassifiedTask `json:"-"`
	AssignedEmployee *records.Employee         `json:"assigned_employee"`
	MatchedCount     int                       `json:"matched_count"`
}

// Step describes one executed stage.
type Step struct {
	Initial int
	Left    int
	Fields  []zap.Field
}

// Status describes how a stage is configured.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// Service sequences the pipeline. It holds no per-request state.
type Service struct {
	classifier Classifier
	matcher    Matcher
	resolver   Resolver
	logger     *zap.Logger
	tracer     trace.Tracer
}

// New constructs a Service.
func New(c Classifier, m Matcher, r Resolver, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		classifier: c,
		matcher:    m,
		resolver:   r,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
	}
}

// Dispatch classifies the task, matches candidates and resolves the nearest
// one. Any stage failure fails the whole dispatch; nothing is retried.
func (s *Service) Dispatch(ctx context.Context, req Request) (*Result, error) {
	requestID := uuid.NewString()
	log := logger.WithRequest(s.logger, requestID)

	ctx, span := s.tracer.Start(ctx, "dispatch", trace.WithAttributes(
		attribute.String("request.id", requestID),
	))
	defer span.End()

	result, err := s.dispatch(ctx, log, requestID, req)
	if err != nil {
		metrics.DispatchRequestsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		log.Error("dispatch failed", zap.Error(err))
		return nil, err
	}

	outcome := metrics.OutcomeUnassigned
	if result.AssignedEmployee != nil {
		outcome = metrics.OutcomeAssigned
		span.SetAttributes(attribute.String("employee.id", result.AssignedEmployee.ID))
	}
	metrics.DispatchRequestsTotal.WithLabelValues(outcome).Inc()
	metrics.DispatchCandidates.Observe(float64(result.MatchedCount))
	span.SetAttributes(attribute.Int("matched_count", result.MatchedCount))

	log.Info("dispatch finished",
		zap.String("outcome", outcome),
		zap.Int("matched_count", result.MatchedCount),
	)

	return result, nil
}

func (s *Service) dispatch(ctx context.Context, log *zap.Logger, requestID string, req Request) (*Result, error) {
	if strings.TrimSpace(req.TaskDescription) == "" {
		return nil, fmt.Errorf("%w: task description is required", ErrInvalidRequest)
	}
	if !req.CustomerLocation.Usable() {
		return nil, fmt.Errorf("%w: customer location is required", ErrInvalidRequest)
	}

	log.Debug("dispatch started",
		zap.String("customer", req.CustomerName),
		zap.String("location", req.CustomerLocation.RoutingToken()),
	)

	task, err := runStage(ctx, s, log, StageClassify, func(ctx context.Context) (classifier.ClassifiedTask, Step, error) {
		task, err := s.classifier.Classify(ctx, req.TaskDescription)
		return task, Step{Fields: []zap.Field{
			zap.String("category", task.Category),
			zap.Strings("skills", task.RequiredSkills),
		}}, err
	})
	if err != nil {
		return nil, err
	}

	candidates, err := runStage(ctx, s, log, StageMatch, func(ctx context.Context) ([]records.Employee, Step, error) {
		candidates, err := s.matcher.Match(ctx, task.Category, task.RequiredSkills)
		return candidates, Step{Left: len(candidates)}, err
	})
	if err != nil {
		return nil, err
	}

	assigned, err := runStage(ctx, s, log, StageResolve, func(ctx context.Context) (*records.Employee, Step, error) {
		assigned, err := s.resolver.Resolve(ctx, req.CustomerLocation, candidates)
		step := Step{Initial: len(candidates)}
		if assigned != nil {
			step.Left = 1
			step.Fields = []zap.Field{zap.String("employee_id", assigned.ID)}
		}
		return assigned, step, err
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		RequestID:        requestID,
		Task:             task,
		AssignedEmployee: assigned,
		MatchedCount:     len(candidates),
	}, nil
}

func runStage[T any](ctx context.Context, s *Service, log *zap.Logger, name string, fn func(context.Context) (T, Step, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "dispatch."+name)
	defer span.End()

	start := time.Now()
	out, step, err := fn(ctx)
	took := time.Since(start)

	metrics.DispatchStageDuration.WithLabelValues(name).Observe(took.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
		var zero T
		return zero, fmt.Errorf("%s: %w", name, err)
	}

	span.SetAttributes(attribute.Int("initial", step.Initial), attribute.Int("left", step.Left))

	fields := append([]zap.Field{
		zap.String(logger.FieldStage, name),
		zap.Int("initial", step.Initial),
		zap.Int("left", step.Left),
		zap.Duration("took", took),
	}, step.Fields...)
	log.Info("dispatch step", fields...)

	return out, nil
}

// Describe reports how each stage is configured.
func (s *Service) Describe() []Status {
	classify := Status{Name: StageClassify, Enabled: s.classifier != nil, Details: map[string]string{}}
	if m, ok := s.classifier.(interface{ Model() string }); ok && m.Model() != "" {
		classify.Details["model"] = m.Model()
	}

	match := Status{Name: StageMatch, Enabled: s.matcher != nil}

	resolve := Status{Name: StageResolve, Enabled: s.resolver != nil, Details: map[string]string{"distance": "haversine"}}
	if r, ok := s.resolver.(interface{ RoutingEnabled() bool }); ok && r.RoutingEnabled() {
		resolve.Details["distance"] = "haversine,routing"
	} else {
		resolve.Reason = "routing client not configured; token-only locations are skipped"
	}

	return []Status{classify, match, resolve}
}
