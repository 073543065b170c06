// Package context carries request-scoped identifiers used by logs and spans.
package context

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

type (
	requestIDKey     struct{}
	correlationIDKey struct{}
	eventIDKey       struct{}
	eventTypeKey     struct{}
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDKey{})
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return withString(ctx, correlationIDKey{}, id)
}

func CorrelationIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, correlationIDKey{})
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating
// a ULID when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := CorrelationIDFromContext(ctx)
	if cid == "" {
		cid = ulid.Make().String()
	}
	return WithCorrelationID(ctx, cid), cid
}

// WithEvent records the processor event being handled.
func WithEvent(ctx context.Context, eventID, eventType string) context.Context {
	ctx = withString(ctx, eventIDKey{}, eventID)
	return withString(ctx, eventTypeKey{}, eventType)
}

func EventFromContext(ctx context.Context) (string, string) {
	return stringFrom(ctx, eventIDKey{}), stringFrom(ctx, eventTypeKey{})
}

func withString(ctx context.Context, key any, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(key).(string); ok {
		return value
	}
	return ""
}
