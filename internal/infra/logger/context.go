package logger

import (
	"context"
	"log/slog"
)

type ContextKey string

// Request-scoped keys propagated through the context for observability.
const (
	RequestIDKey ContextKey = "docvault.request.id"
	UserIDKey    ContextKey = "docvault.user.id"
)

// WithRequestID tags the context with the request identifier.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID tags the context with the requesting user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// FromContext returns the logger enriched with whatever request-scoped
// fields the context carries.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	var fields []any
	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		fields = append(fields, string(RequestIDKey), requestID)
	}
	if userID := ctx.Value(UserIDKey); userID != nil {
		fields = append(fields, string(UserIDKey), userID)
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
