package services

import "context"

type contextKey string

const (
	wineIDKey    contextKey = "wine_id"
	taskIDKey    contextKey = "task_id"
	jobKindKey   contextKey = "job_kind"
	requestIDKey contextKey = "request_id"
)

// WithWineID annotates context with the wine identifier.
func WithWineID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, wineIDKey, id)
}

// WineIDFromContext extracts the wine identifier if present.
func WineIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, wineIDKey)
}

// WithTaskID annotates context with the label task identifier.
func WithTaskID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, taskIDKey, id)
}

// TaskIDFromContext extracts the label task identifier if present.
func TaskIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, taskIDKey)
}

// WithJobKind annotates context with the background job kind (enrichment, label).
func WithJobKind(ctx context.Context, kind string) context.Context {
	if kind == "" {
		return ctx
	}
	return context.WithValue(ctx, jobKindKey, kind)
}

// JobKindFromContext returns the job kind if present.
func JobKindFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobKindKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

func int64Value(ctx context.Context, key contextKey) (int64, bool) {
	v := ctx.Value(key)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}
