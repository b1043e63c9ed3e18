package services

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	groupKeyKey  contextKey = "group_key"
	fileNameKey  contextKey = "file_name"
)

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

// WithGroupKey annotates context with the title group key being resolved.
func WithGroupKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, groupKeyKey, key)
}

// GroupKeyFromContext returns the group key if present.
func GroupKeyFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(groupKeyKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithFileName annotates context with the release name under resolution.
func WithFileName(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, fileNameKey, name)
}

// FileNameFromContext returns the release name if present.
func FileNameFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(fileNameKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
