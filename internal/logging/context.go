package logging

import (
	"context"
	"log/slog"

	"cellar/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldWineID is the standardized structured logging key for wine identifiers.
	FieldWineID = "wine_id"
	// FieldTaskID is the standardized structured logging key for label task identifiers.
	FieldTaskID = "task_id"
	// FieldJobKind is the standardized structured logging key for background job kinds.
	FieldJobKind = "job_kind"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering (e.g. enrichment_skipped).
	FieldEventType = "event_type"
	// FieldErrorHint carries the next step an operator should take.
	FieldErrorHint = "error_hint"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.WineIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldWineID, id))
	}
	if id, ok := services.TaskIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldTaskID, id))
	}
	if kind, ok := services.JobKindFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobKind, kind))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
