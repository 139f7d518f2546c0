package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey     contextKey = "request_id"
	localRecordIDKey contextKey = "local_record_id"
	identifierKey    contextKey = "identifier"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithLocalRecordID adds a local researcher record ID to the context.
func WithLocalRecordID(ctx context.Context, localRecordID string) context.Context {
	return context.WithValue(ctx, localRecordIDKey, localRecordID)
}

// LocalRecordIDFromContext retrieves the local record ID from context.
// Returns empty string if not present.
func LocalRecordIDFromContext(ctx context.Context) string {
	if v := ctx.Value(localRecordIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithIdentifier adds a canonical researcher identifier to the context.
func WithIdentifier(ctx context.Context, identifier string) context.Context {
	return context.WithValue(ctx, identifierKey, identifier)
}

// IdentifierFromContext retrieves the canonical identifier from context.
// Returns empty string if not present.
func IdentifierFromContext(ctx context.Context) string {
	if v := ctx.Value(identifierKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// MatchContext contains all the context data for a reconciliation request.
type MatchContext struct {
	RequestID     string
	LocalRecordID string
	Identifier    string
}

// WithMatchContextFull adds all match context to the context.
func WithMatchContextFull(ctx context.Context, mc MatchContext) context.Context {
	if mc.RequestID != "" {
		ctx = WithRequestID(ctx, mc.RequestID)
	}
	if mc.LocalRecordID != "" {
		ctx = WithLocalRecordID(ctx, mc.LocalRecordID)
	}
	if mc.Identifier != "" {
		ctx = WithIdentifier(ctx, mc.Identifier)
	}
	return ctx
}

// MatchContextFromContext extracts all match context from the context.
func MatchContextFromContext(ctx context.Context) MatchContext {
	return MatchContext{
		RequestID:     RequestIDFromContext(ctx),
		LocalRecordID: LocalRecordIDFromContext(ctx),
		Identifier:    IdentifierFromContext(ctx),
	}
}
