// Package classifier turns a free-text task description into the category
// and skills needed to handle it.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/crewzy/internal/ai"
	"github.com/spigell/crewzy/internal/logger"

	"go.uber.org/zap"
)

// DefaultCategory is used when the model reply cannot be parsed.
const DefaultCategory = "technician"

const (
	systemInstruction   = "You classify field-service tasks for a dispatch system. You reply with a single JSON object and nothing else."
	defaultMaxLogLength = 200
)

//go:embed prompt.md
var promptTemplate string

// ClassifiedTask is the skill profile a task needs.
type ClassifiedTask struct {
	Category       string   `json:"subRole"`
	RequiredSkills []string `json:"skills"`
}

// ParsedClassification is either Success or Failure.
type ParsedClassification interface {
	parsed()
}

// Success is a model reply that parsed into a category and skills.
type Success struct {
	Category string
	Skills   []string
}

// Failure is a model reply that could not be used.
type Failure struct {
	Reason error
}

func (Success) parsed() {}
func (Failure) parsed() {}

// Normalizer reconciles a generated category with the employee pool.
type Normalizer interface {
	Normalize(ctx context.Context, candidate string) (string, error)
}

// Classifier asks a language model for a ClassifiedTask.
type Classifier struct {
	generator  ai.Generator
	normalizer Normalizer
	logger     *zap.Logger
	maxLogLen  int
}

// New constructs a Classifier.
func New(generator ai.Generator, normalizer Normalizer, log *zap.Logger, maxLogLength int) *Classifier {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Classifier{
		generator:  generator,
		normalizer: normalizer,
		logger:     log,
		maxLogLen:  maxLogLength,
	}
}

// Default returns the record used when the model reply is unusable.
func Default() ClassifiedTask {
	return ClassifiedTask{Category: DefaultCategory, RequiredSkills: []string{}}
}

// Classify classifies description. Unparseable model output falls back to
// Default and is not an error; transport and normalization failures are.
func (c *Classifier) Classify(ctx context.Context, description string) (ClassifiedTask, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return ClassifiedTask{}, errors.New("task description is required")
	}

	prompt := buildPrompt(description)

	raw, err := c.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return ClassifiedTask{}, fmt.Errorf("classify task: %w", err)
	}

	c.logger.Debug("classification reply",
		zap.String(logger.FieldModel, c.generator.Model()),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, c.maxLogLen)),
	)

	var task ClassifiedTask
	switch result := Parse(raw).(type) {
	case Success:
		task = ClassifiedTask{Category: result.Category, RequiredSkills: result.Skills}
	case Failure:
		c.logger.Warn("unusable classification reply; using default",
			zap.Error(result.Reason),
			zap.String("response_preview", logger.TruncateForLog(raw, c.maxLogLen)),
		)
		task = Default()
	}

	if c.normalizer == nil {
		return task, nil
	}

	normalized, err := c.normalizer.Normalize(ctx, task.Category)
	if err != nil {
		return ClassifiedTask{}, fmt.Errorf("normalize category %q: %w", task.Category, err)
	}
	if normalized != task.Category {
		c.logger.Debug("category normalized",
			zap.String("from", task.Category),
			zap.String("to", normalized),
		)
	}
	task.Category = normalized

	return task, nil
}

// Parse interprets a model reply. It never panics and never returns nil.
func Parse(raw string) ParsedClassification {
	cleaned := ai.ExtractJSON(raw)
	if cleaned == "" {
		return Failure{Reason: errors.New("empty reply")}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return Failure{Reason: fmt.Errorf("parse classification: %w", err)}
	}

	category := coerceString(data["subRole"])
	if category == "" {
		category = coerceString(data["category"])
	}
	if category == "" {
		return Failure{Reason: errors.New("reply has no subRole")}
	}

	return Success{Category: category, Skills: coerceStrings(data["skills"])}
}

func buildPrompt(description string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Classify the task into a subRole and skills. Return ONLY JSON {\"subRole\": \"...\", \"skills\": [...]}.\nTask: \"{{TASK}}\""
	}
	return strings.ReplaceAll(template, "{{TASK}}", description)
}

func coerceString(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func coerceStrings(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Model names the language model behind the classifier.
func (c *Classifier) Model() string {
	if c == nil || c.generator == nil {
		return ""
	}
	return c.generator.Model()
}
