package logger

import (
	"go.uber.org/zap"
)

const (
	FieldCandidate = "candidate_id"
	FieldJob       = "job_id"
	FieldKind      = "action_kind"
	FieldSession   = "session"
)

// ActionFields describes a candidate action. Zero ids and empty strings are
// left out so partially known actions still log compactly.
func ActionFields(kind string, candidateID, jobID int, session string) []zap.Field {
	fields := make([]zap.Field, 0, 4)
	if kind != "" {
		fields = append(fields, zap.String(FieldKind, kind))
	}
	if candidateID != 0 {
		fields = append(fields, zap.Int(FieldCandidate, candidateID))
	}
	if jobID != 0 {
		fields = append(fields, zap.Int(FieldJob, jobID))
	}
	if session != "" {
		fields = append(fields, zap.String(FieldSession, session))
	}
	return fields
}

// WithFields attaches fields to the logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}
