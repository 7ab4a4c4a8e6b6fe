// Package api exposes dispatch and the query assistant over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/spigell/crewzy/internal/dispatch"
	"github.com/spigell/crewzy/internal/geo"
	"github.com/spigell/crewzy/internal/metrics"
	"github.com/spigell/crewzy/internal/nearest"
	"github.com/spigell/crewzy/internal/remote"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Chat replies.
const (
	missingFields = "Missing required fields."
	invalidUserID = "Invalid user ID."
	chatFailed    = "Could not answer the query."
)

// Dispatcher assigns a task to an employee.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
}

// Assistant answers a user's query.
type Assistant interface {
	Answer(ctx context.Context, userID, query string) (string, error)
}

// Handler serves the HTTP API.
type Handler struct {
	dispatcher Dispatcher
	assistant  Assistant
	logger     *zap.Logger
	validate   *validator.Validate
	tracer     trace.Tracer
}

// NewHandler creates a Handler. assistant may be nil, in which case /chat
// is not registered.
func NewHandler(dispatcher Dispatcher, assistant Assistant, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{
		dispatcher: dispatcher,
		assistant:  assistant,
		logger:     logger.With(zap.String("component", "http")),
		validate:   validator.New(),
		tracer:     otel.Tracer("github.com/spigell/crewzy/internal/api"),
	}
}

// instrumentedResponseWriter records the status code written by a handler.
type instrumentedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RegisterRoutes registers the API routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /assign-employee", h.instrument("/assign-employee", h.handleAssignEmployee))
	if h.assistant != nil {
		mux.Handle("POST /chat", h.instrument("/chat", h.handleChat))
	}
	mux.Handle("GET /healthz", h.instrument("/healthz", h.handleHealth))
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Routes returns a ready-to-serve handler with CORS applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func (h *Handler) instrument(path string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "HTTP "+r.Method+" "+path, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		r = r.WithContext(ctx)

		iw := &instrumentedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(iw, r)

		metrics.HTTPRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(iw.statusCode)).Inc()

		span.SetAttributes(attribute.Int("http.status_code", iw.statusCode))
		if iw.statusCode >= 500 {
			span.SetStatus(codes.Error, "Server Error")
		}
	})
}

// corsMiddleware lets the browser frontend call the API from another origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleAssignEmployee(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.AssignEmployee")
	defer span.End()

	var req AssignEmployeeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "Failed to decode request body")
		span.RecordError(err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request body", "details": []string{err.Error()}})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		span.SetStatus(codes.Error, "Validation failed")
		span.RecordError(err)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Missing one of required fields: [name number coordinates|eLoc task]",
			"details": validationDetails(err),
		})
		return
	}

	dispatchReq, err := req.ToDispatchRequest()
	if err != nil {
		span.SetStatus(codes.Error, "Invalid location")
		span.RecordError(err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	result, err := h.dispatcher.Dispatch(ctx, dispatchReq)
	if err != nil {
		span.SetStatus(codes.Error, "Dispatch failed")
		span.RecordError(err)

		status := dispatchStatus(err)
		message := "Task dispatch failed"
		if status == http.StatusBadRequest {
			message = err.Error()
		}
		if status >= http.StatusInternalServerError {
			h.logger.Error("error dispatching task", zap.Error(err), zap.Int("status", status))
		}
		writeJSON(w, status, map[string]any{"error": message})
		return
	}

	if result.AssignedEmployee != nil {
		span.SetAttributes(attribute.String("employee.id", result.AssignedEmployee.ID))
	}
	span.SetAttributes(attribute.Int("matched_count", result.MatchedCount))

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.Chat")
	defer span.End()

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		span.RecordError(err)
		writeJSON(w, http.StatusBadRequest, ChatResponse{Response: missingFields})
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if err := h.validate.Struct(req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, ChatResponse{Response: missingFields})
		return
	}

	if _, err := uuid.Parse(req.UserID); err != nil {
		writeJSON(w, http.StatusBadRequest, ChatResponse{Response: invalidUserID})
		return
	}
	span.SetAttributes(attribute.String("user.id", req.UserID))

	answer, err := h.assistant.Answer(ctx, req.UserID, req.Query)
	if err != nil {
		span.SetStatus(codes.Error, "Assistant failed")
		span.RecordError(err)
		h.logger.Error("error answering query", zap.String("user_id", req.UserID), zap.Error(err))
		writeJSON(w, upstreamStatus(err), ChatResponse{Response: chatFailed})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Response: answer})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func dispatchStatus(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrInvalidRequest),
		errors.Is(err, geo.ErrInvalidCoordinate),
		errors.Is(err, nearest.ErrNoCustomerLocation):
		return http.StatusBadRequest
	default:
		return upstreamStatus(err)
	}
}

func upstreamStatus(err error) int {
	if errors.Is(err, remote.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func validationDetails(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	details := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		details = append(details, "Field '"+fe.Field()+"' failed on the '"+fe.Tag()+"' tag.")
	}
	return details
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
