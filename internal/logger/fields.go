package logger

import (
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/spigell/jobseekr/internal/jobs"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"

	FieldRunID    = "run_id"
	FieldJobID    = "job_id"
	FieldJobURL   = "job_url"
	FieldJobTitle = "job_title"
	FieldHint     = "hint"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields, trimming whitespace
// and omitting entries with empty keys or values.
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

// WithFields attaches fields to the logger, falling back to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// AIFields describes the AI provider and model. Empty values are dropped.
func AIFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithAI attaches the AI provider and model fields to the logger.
func WithAI(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, AIFields(provider, model)...)
}

// JobFields identifies a job in log entries.
func JobFields(job jobs.Job) []zap.Field {
	return StringFields(
		StringField{Key: FieldJobID, Value: job.ID},
		StringField{Key: FieldJobURL, Value: job.URL},
		StringField{Key: FieldJobTitle, Value: job.Title},
	)
}

// ErrorFields returns the error plus any user hints attached to it.
func ErrorFields(err error) []zap.Field {
	if err == nil {
		return nil
	}

	fields := []zap.Field{zap.Error(err)}
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		fields = append(fields, zap.String(FieldHint, strings.Join(hints, "; ")))
	}
	return fields
}
