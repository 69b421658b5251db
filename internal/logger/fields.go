package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Field keys shared by the recommendation pipeline and the HTTP layer.
const (
	FieldProvider  = "scorer_provider"
	FieldModel     = "scorer_model"
	FieldUserID    = "user_id"
	FieldRequestID = "request_id"
)

// StringField is a key/value pair that is dropped when either side is blank.
type StringField struct {
	Key   string
	Value string
}

// StringFields turns pairs into zap fields, trimming both sides.
func StringFields(pairs ...StringField) []zap.Field {
	out := make([]zap.Field, 0, len(pairs))
	for _, p := range pairs {
		key, value := strings.TrimSpace(p.Key), strings.TrimSpace(p.Value)
		if key == "" || value == "" {
			continue
		}
		out = append(out, zap.String(key, value))
	}
	return out
}

// WithFields returns logger with fields attached. A nil logger becomes a no-op.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// ScorerFields names the external scorer behind a log line: its provider
// ("process", "gemini") and the script or model it runs.
func ScorerFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithScorer tags logger with the external scorer in use.
func WithScorer(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, ScorerFields(provider, model)...)
}

// WithRequest tags logger with the HTTP request id and caller.
func WithRequest(logger *zap.Logger, requestID, userID string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldRequestID, Value: requestID},
		StringField{Key: FieldUserID, Value: userID},
	)...)
}
