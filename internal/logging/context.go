package logging

import (
	"context"
	"log/slog"

	"animelink/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldGroupKey is the standardized structured logging key for title group keys.
	FieldGroupKey = "group_key"
	// FieldFileName is the standardized structured logging key for release names.
	FieldFileName = "file_name"
	// FieldNamespace is the standardized structured logging key for cache namespaces.
	FieldNamespace = "namespace"
	// FieldMediaID is the standardized structured logging key for catalog media identifiers.
	FieldMediaID = "media_id"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType tags decision logs.
	FieldDecisionType = "decision_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	if key, ok := services.GroupKeyFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldGroupKey, key))
	}
	if name, ok := services.FileNameFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldFileName, name))
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
