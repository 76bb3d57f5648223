package services

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	messageIDKey contextKey = "message_id"
)

// WithRequestID annotates context with a correlation identifier for logging.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	return v, ok && v != ""
}

// WithMessageID annotates context with the inbound message identifier.
func WithMessageID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, messageIDKey, id)
}

// MessageIDFromContext extracts the inbound message identifier if present.
func MessageIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(messageIDKey).(int64)
	return v, ok
}
