package tracing

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Header carries the request id in both directions
const Header = "X-Request-ID"

// maxIDLength bounds ids accepted from clients
const maxIDLength = 128

type contextKey struct{}

// NewID returns a fresh request id
func NewID() string {
	return uuid.NewString()
}

// WithID returns ctx tagged with requestID
func WithID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// FromContext returns the request id stored in ctx, if any
func FromContext(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(contextKey{}).(string)
	return requestID, ok && requestID != ""
}

// Field returns a zap field for the request id in ctx, or zap.Skip
func Field(ctx context.Context) zap.Field {
	if requestID, ok := FromContext(ctx); ok {
		return zap.String("request_id", requestID)
	}
	return zap.Skip()
}

// accept reports whether a client-supplied id is safe to echo and log
func accept(requestID string) bool {
	if requestID == "" || len(requestID) > maxIDLength {
		return false
	}
	for _, r := range requestID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}
