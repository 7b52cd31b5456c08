package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
	// ConversationIDKey is the context key for conversation ID
	ConversationIDKey ContextKey = "conversation_id"
)

// TraceContext holds tracing information for one user turn.
type TraceContext struct {
	TraceID        string
	RequestID      string
	ConversationID string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRequestID generates a new request ID
func NewRequestID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithConversationID adds a conversation ID to the context
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, ConversationIDKey, conversationID)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetConversationID retrieves the conversation ID from the context
func GetConversationID(ctx context.Context) string {
	if conversationID, ok := ctx.Value(ConversationIDKey).(string); ok {
		return conversationID
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:        GetTraceID(ctx),
		RequestID:      GetRequestID(ctx),
		ConversationID: GetConversationID(ctx),
	}
}

// NewContext creates a new context carrying the given tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.RequestID != "" {
		ctx = WithRequestID(ctx, tc.RequestID)
	}
	if tc.ConversationID != "" {
		ctx = WithConversationID(ctx, tc.ConversationID)
	}
	return ctx
}

// NewRequestContext stamps a context with fresh trace and request IDs for
// one user turn.
func NewRequestContext(ctx context.Context) context.Context {
	ctx = WithTraceID(ctx, NewTraceID())
	return WithRequestID(ctx, NewRequestID())
}
