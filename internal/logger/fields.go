package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured log field keys
const (
	FieldSessionID  = "session_id"
	FieldCVID       = "cv_id"
	FieldJobID      = "job_id"
	FieldPhase      = "phase"
	FieldEndpoint   = "endpoint"
	FieldGeneration = "generation"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields, trimming whitespace
// and omitting entries with an empty key or value.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		value := strings.TrimSpace(field.Value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}
	return result
}

// WithFields attaches fields to the logger. A nil logger yields a no-op logger.
func WithFields(l *zap.Logger, fields ...zap.Field) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// SessionFields returns the fields identifying one analysis session.
func SessionFields(sessionID, cvID string, generation uint64) []zap.Field {
	fields := StringFields(
		StringField{Key: FieldSessionID, Value: sessionID},
		StringField{Key: FieldCVID, Value: cvID},
	)
	return append(fields, zap.Uint64(FieldGeneration, generation))
}
