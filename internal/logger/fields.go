package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for a remote provider name.
	FieldProvider = "provider"
	// FieldModel is the structured log field key for a model identifier.
	FieldModel = "model"
	// FieldRequestID identifies one dispatch or chat request across log lines.
	FieldRequestID = "request_id"
	// FieldStage names the dispatch pipeline stage.
	FieldStage = "stage"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to log, falling back to a no-op logger when log is nil.
func WithFields(log *zap.Logger, fields ...zap.Field) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}

	if len(fields) == 0 {
		return log
	}

	return log.With(fields...)
}

// WithCommonFields tags log with the remote provider and model.
func WithCommonFields(log *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(log, StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)...)
}

// WithRequest tags log with a request id.
func WithRequest(log *zap.Logger, requestID string) *zap.Logger {
	return WithFields(log, StringFields(StringField{Key: FieldRequestID, Value: requestID})...)
}
