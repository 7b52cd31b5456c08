package observability

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dajeong/miso/internal/tracing"
)

// AuditEvent is one entry in the append-only audit trail: a tool
// invocation, a remote link transition, or a configuration change.
type AuditEvent struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"` // conversation key or subsystem
	Action    string                 `json:"action"`          // e.g., "invoke:add", "degrade", "reload"
	Status    string                 `json:"status"`          // "success" or a failure kind
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// AuditLogger appends audit events as JSON lines to a dedicated file.
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

var (
	auditMu   sync.Mutex
	auditInst *AuditLogger
)

// GetAuditLogger returns the process-wide audit logger. Until
// InitAuditLogger runs, events go to stderr.
func GetAuditLogger() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditInst == nil {
		auditInst = &AuditLogger{
			logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
		}
	}
	return auditInst
}

// InitAuditLogger points the global audit logger at a file, replacing
// any previous destination. The file is created private, like the rest
// of the data directory.
func InitAuditLogger(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	auditMu.Lock()
	old := auditInst
	auditInst = &AuditLogger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	}
	auditMu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Record writes one audit event. An empty actor is filled from the
// context's conversation ID, and when the context carries an active
// span the event is mirrored onto it so traces and the audit file can
// be joined on the trace ID.
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Actor == "" {
		event.Actor = tracing.GetConversationID(ctx)
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		event.TraceID = span.SpanContext().TraceID().String()

		span.AddEvent(event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.status", event.Status),
			attribute.String("audit.actor", event.Actor),
		))
	} else if event.TraceID == "" {
		event.TraceID = tracing.GetTraceID(ctx)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status).
		Str("trace_id", event.TraceID)

	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit logger's file handle.
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	return nil
}

// Helpers for the events the assistant emits.

// RecordInvocationAudit writes one line per tool execution. Arguments
// never land here; the audit file bypasses the redactor.
func RecordInvocationAudit(ctx context.Context, recordID, tool, origin, status string, duration time.Duration) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:   "tool",
		Action: "invoke:" + tool,
		Status: status,
		Metadata: map[string]interface{}{
			"record_id":   recordID,
			"origin":      origin,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// RecordLinkAudit writes remote link lifecycle transitions.
func RecordLinkAudit(ctx context.Context, action, status string, metadata map[string]interface{}) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "link",
		Actor:    "mcplink",
		Action:   action,
		Status:   status,
		Metadata: metadata,
	})
}

// RecordConfigAudit writes configuration lifecycle events.
func RecordConfigAudit(ctx context.Context, action, actor string, metadata map[string]interface{}) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "config",
		Actor:    actor,
		Action:   action,
		Status:   "success",
		Metadata: metadata,
	})
}
