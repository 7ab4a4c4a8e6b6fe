// Package assistant answers natural-language questions about users, tasks,
// companies and attendance, restricting employees to their own data.
package assistant

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/crewzy/internal/ai"
	"github.com/spigell/crewzy/internal/logger"
	"github.com/spigell/crewzy/internal/metrics"
	"github.com/spigell/crewzy/internal/records"
	"github.com/spigell/crewzy/internal/remote"
	"github.com/spigell/crewzy/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Caller roles.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// Fixed replies.
const (
	UserNotFound        = "User not found."
	authorizationFailed = "Authorization check failed."
	unauthorized        = "unauthorized information requested"
	unclassified        = "Could not classify query."
)

const (
	authorizeInstruction = "You are an authorization assistant for a field-service company."
	queryInstruction     = "You are a document store query assistant. You reply with a single JSON object and nothing else."
	answerInstruction    = "You are a helpful assistant."
	defaultMaxLogLength  = 200
)

// Outcomes recorded in metrics.
const (
	outcomeAnswered     = "answered"
	outcomeDenied       = "denied"
	outcomeNotFound     = "not_found"
	outcomeUnclassified = "unclassified"
	outcomeFailed       = "failed"

	roleUnknown = "unknown"
)

// Fields never sent to the language model.
var privateFields = []string{"password"}

//go:embed prompts/*.md
var prompts embed.FS

// Finder is the store query the assistant runs.
type Finder interface {
	Find(ctx context.Context, collection string, filter store.Filter) ([]store.Document, error)
}

// Assistant answers queries on behalf of a user.
type Assistant struct {
	generator ai.Generator
	finder    Finder
	logger    *zap.Logger
	maxLogLen int
}

// New constructs an Assistant.
func New(generator ai.Generator, finder Finder, log *zap.Logger, maxLogLength int) *Assistant {
	if log == nil {
		log = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Assistant{generator: generator, finder: finder, logger: log, maxLogLen: maxLogLength}
}

// ClassifyRole maps a stored role to a caller role: hr and admin are admins,
// everyone else is an employee.
func ClassifyRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "hr", "admin":
		return RoleAdmin
	default:
		return RoleEmployee
	}
}

// Answer answers query for the user with userID. Unknown users get
// UserNotFound. Store failures are returned as errors; a failing answer
// formatter is reported in the returned text.
func (a *Assistant) Answer(ctx context.Context, userID, query string) (string, error) {
	log := logger.WithRequest(a.logger, uuid.NewString())

	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.New("query is required")
	}

	user, found, err := a.loadUser(ctx, userID)
	if err != nil {
		metrics.AssistantQueriesTotal.WithLabelValues(roleUnknown, outcomeFailed).Inc()
		return "", err
	}
	if !found {
		metrics.AssistantQueriesTotal.WithLabelValues(roleUnknown, outcomeNotFound).Inc()
		log.Info("assistant user not found", zap.String("user_id", userID))
		return UserNotFound, nil
	}

	role := ClassifyRole(user.Role)
	log = log.With(zap.String("user_id", user.ID), zap.String("role", role))
	log.Info("processing assistant query")

	var (
		results any
		outcome string
	)
	switch role {
	case RoleEmployee:
		results, outcome, err = a.employeeResults(ctx, log, user, query)
	default:
		results, outcome, err = a.adminResults(ctx, log, query)
	}
	if err != nil {
		metrics.AssistantQueriesTotal.WithLabelValues(role, outcomeFailed).Inc()
		return "", err
	}

	metrics.AssistantQueriesTotal.WithLabelValues(role, outcome).Inc()
	return a.format(ctx, log, query, results), nil
}

func (a *Assistant) loadUser(ctx context.Context, userID string) (records.User, bool, error) {
	docs, err := a.finder.Find(ctx, store.Users, store.Filter{"_id": strings.TrimSpace(userID)})
	if err != nil {
		return records.User{}, false, fmt.Errorf("load user: %w", err)
	}
	if len(docs) == 0 {
		return records.User{}, false, nil
	}

	user, err := records.UserFromDocument(docs[0])
	if err != nil {
		return records.User{}, false, fmt.Errorf("load user: %w", err)
	}
	return user, true, nil
}

func (a *Assistant) employeeResults(ctx context.Context, log *zap.Logger, user records.User, query string) (any, string, error) {
	allowed, message := a.authorize(ctx, log, user, query)
	log.Info("employee query check", zap.Bool("allowed", allowed), zap.String("message", message))

	if !allowed {
		payload := map[string]any{"error": unauthorized}
		if message != "" {
			payload["reason"] = message
		}
		return payload, outcomeDenied, nil
	}

	tasks, err := a.finder.Find(ctx, store.Tasks, store.Filter{"assigneeId": user.ID})
	if err != nil {
		return nil, "", fmt.Errorf("load tasks of %s: %w", user.ID, err)
	}
	return ownTasks(log, tasks), outcomeAnswered, nil
}

// ownTasks maps task documents, skipping the ones that do not map.
func ownTasks(log *zap.Logger, docs []store.Document) []records.Task {
	tasks := make([]records.Task, 0, len(docs))
	for _, doc := range docs {
		task, err := records.TaskFromDocument(doc)
		if err != nil {
			log.Warn("skipping unmappable task", zap.String("id", doc.ID()), zap.Error(err))
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

func (a *Assistant) adminResults(ctx context.Context, log *zap.Logger, query string) (any, string, error) {
	collection, filter, err := a.classifyQuery(ctx, query)
	if err != nil {
		if remote.IsFatal(err) {
			return nil, "", err
		}
		log.Warn("query classification failed", zap.Error(err))
		return []map[string]any{{"error": unclassified}}, outcomeUnclassified, nil
	}

	log.Info("classified query", zap.String("collection", collection), zap.Any("filter", filter))

	if err := store.CheckCollection(collection); err != nil {
		return map[string]any{"error": fmt.Sprintf("Collection '%s' not found.", collection)}, outcomeUnclassified, nil
	}

	docs, err := a.finder.Find(ctx, collection, filter)
	if err != nil {
		if errors.Is(err, store.ErrInvalidFilter) {
			log.Warn("generated filter rejected", zap.Error(err))
			return map[string]any{"error": "The generated query was not valid."}, outcomeUnclassified, nil
		}
		return nil, "", fmt.Errorf("run query on %s: %w", collection, err)
	}

	return sanitize(docs), outcomeAnswered, nil
}

// authorize asks the model whether an employee may run query. Any failure
// denies.
func (a *Assistant) authorize(ctx context.Context, log *zap.Logger, user records.User, query string) (bool, string) {
	prompt := render("authorize.md", map[string]string{
		"USER_ID":   user.ID,
		"USER_NAME": strings.ToLower(user.Name),
		"QUERY":     query,
	})

	raw, err := a.generator.GenerateContent(ctx, authorizeInstruction, prompt)
	if err != nil {
		log.Error("authorization check failed", zap.Error(err))
		return false, authorizationFailed
	}

	object := ai.FirstJSONObject(raw)
	if object == "" {
		log.Warn("authorization reply has no JSON", zap.String("response_preview", logger.TruncateForLog(raw, a.maxLogLen)))
		return false, authorizationFailed
	}

	var decision struct {
		Allowed any `json:"allowed"`
		Message any `json:"message"`
	}
	if err := json.Unmarshal([]byte(object), &decision); err != nil {
		log.Warn("authorization reply is not valid JSON", zap.Error(err))
		return false, authorizationFailed
	}

	message, _ := decision.Message.(string)
	return coerceBool(decision.Allowed), strings.TrimSpace(message)
}

func (a *Assistant) classifyQuery(ctx context.Context, query string) (string, store.Filter, error) {
	raw, err := a.generator.GenerateContent(ctx, queryInstruction, render("query.md", map[string]string{"QUERY": query}))
	if err != nil {
		return "", nil, fmt.Errorf("classify query: %w", err)
	}

	cleaned := ai.ExtractJSON(raw)
	var result struct {
		Collection string         `json:"collection"`
		Filter     map[string]any `json:"filter"`
	}
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		object := ai.FirstJSONObject(raw)
		if object == "" {
			return "", nil, fmt.Errorf("parse query classification: %w", err)
		}
		if err := json.Unmarshal([]byte(object), &result); err != nil {
			return "", nil, fmt.Errorf("parse query classification: %w", err)
		}
	}

	collection := strings.ToLower(strings.TrimSpace(result.Collection))
	if collection == "" {
		return "", nil, errors.New("query classification has no collection")
	}

	filter := store.Filter(result.Filter)
	if filter == nil {
		filter = store.Filter{}
	}
	return collection, filter, nil
}

// format turns raw results into a conversational answer. It always returns
// text: a failure is described in the answer itself.
func (a *Assistant) format(ctx context.Context, log *zap.Logger, query string, results any) string {
	payload, err := json.Marshal(results)
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", results))
	}

	prompt := render("answer.md", map[string]string{
		"QUERY":   query,
		"RESULTS": string(payload),
	})

	answer, err := a.generator.GenerateContent(ctx, answerInstruction, prompt)
	if err != nil {
		log.Error("formatting answer failed", zap.Error(err))
		return fmt.Sprintf("Failed to generate answer: %v", err)
	}

	return strings.TrimSpace(answer)
}

func render(name string, values map[string]string) string {
	data, err := prompts.ReadFile("prompts/" + name)
	if err != nil {
		panic(fmt.Sprintf("missing embedded prompt %s: %v", name, err))
	}

	out := string(data)
	for key, value := range values {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}

// sanitize drops private fields from documents before they leave the process.
func sanitize(docs []store.Document) []store.Document {
	out := make([]store.Document, 0, len(docs))
	for _, doc := range docs {
		clean := doc.Clone()
		for _, field := range privateFields {
			delete(clean, field)
		}
		out = append(out, clean)
	}
	return out
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}
