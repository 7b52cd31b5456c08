package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.RequestID != "" {
		logger = logger.With().Str("request_id", tc.RequestID).Logger()
	}
	if tc.ConversationID != "" {
		logger = logger.With().Str("conversation_id", tc.ConversationID).Logger()
	}

	return logger
}

// LoggerFromContext creates a logger with tracing context from the given context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}

// MergeContext copies tracing information from source into target without
// overwriting identifiers target already carries.
func MergeContext(target, source context.Context) context.Context {
	tc := FromContext(source)

	if tc.TraceID != "" && GetTraceID(target) == "" {
		target = WithTraceID(target, tc.TraceID)
	}
	if tc.RequestID != "" && GetRequestID(target) == "" {
		target = WithRequestID(target, tc.RequestID)
	}
	if tc.ConversationID != "" && GetConversationID(target) == "" {
		target = WithConversationID(target, tc.ConversationID)
	}

	return target
}

// CloneContext creates a detached context with the same tracing
// information, for work that must outlive the request context.
func CloneContext(ctx context.Context) context.Context {
	tc := FromContext(ctx)
	return NewContext(context.Background(), tc)
}
