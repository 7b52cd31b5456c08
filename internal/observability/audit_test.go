package observability

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dajeong/miso/internal/tracing"
)

func auditToFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(path))
	t.Cleanup(func() { _ = GetAuditLogger().Close() })
	return path
}

func readAuditLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var events []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &event), "line: %s", line)
		events = append(events, event)
	}
	return events
}

func TestInitAuditLogger_WritesJSONLines(t *testing.T) {
	path := auditToFile(t)

	GetAuditLogger().Record(context.Background(), AuditEvent{
		Type:   "tool",
		Actor:  "default",
		Action: "invoke:add",
		Status: "success",
	})

	events := readAuditLines(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, "tool", events[0]["type"])
	assert.Equal(t, "default", events[0]["actor"])
	assert.Equal(t, "invoke:add", events[0]["action"])
	assert.Equal(t, "success", events[0]["status"])
	assert.Contains(t, events[0], "time")
}

func TestInitAuditLogger_FileIsPrivate(t *testing.T) {
	path := auditToFile(t)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestInitAuditLogger_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.log")

	require.NoError(t, InitAuditLogger(path))
	defer GetAuditLogger().Close()

	GetAuditLogger().Record(context.Background(), AuditEvent{Type: "config", Action: "save", Status: "success"})
	assert.Len(t, readAuditLines(t, path), 1)
}

func TestInitAuditLogger_ReplacesPreviousDestination(t *testing.T) {
	first := filepath.Join(t.TempDir(), "first.log")
	second := filepath.Join(t.TempDir(), "second.log")

	require.NoError(t, InitAuditLogger(first))
	GetAuditLogger().Record(context.Background(), AuditEvent{Type: "link", Action: "connect", Status: "success"})

	require.NoError(t, InitAuditLogger(second))
	defer GetAuditLogger().Close()
	GetAuditLogger().Record(context.Background(), AuditEvent{Type: "link", Action: "degrade", Status: "failure"})

	assert.Len(t, readAuditLines(t, first), 1)

	events := readAuditLines(t, second)
	require.Len(t, events, 1)
	assert.Equal(t, "degrade", events[0]["action"])
}

func TestRecord_FillsActorFromConversation(t *testing.T) {
	path := auditToFile(t)

	ctx := tracing.WithConversationID(context.Background(), "workbench")
	GetAuditLogger().Record(ctx, AuditEvent{Type: "tool", Action: "invoke:divide", Status: "domain_error"})

	events := readAuditLines(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, "workbench", events[0]["actor"])
}

func TestRecord_CarriesTraceID(t *testing.T) {
	path := auditToFile(t)

	ctx := tracing.WithTraceID(context.Background(), "trace-abc123")
	GetAuditLogger().Record(ctx, AuditEvent{Type: "tool", Action: "invoke:add", Status: "success"})

	events := readAuditLines(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, "trace-abc123", events[0]["trace_id"])
}

func TestRecordInvocationAudit(t *testing.T) {
	path := auditToFile(t)

	RecordInvocationAudit(context.Background(), "rec-42", "current_date", "local", "success", 3*time.Millisecond)

	events := readAuditLines(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, "tool", events[0]["type"])
	assert.Equal(t, "invoke:current_date", events[0]["action"])

	metadata, ok := events[0]["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "rec-42", metadata["record_id"])
	assert.Equal(t, "local", metadata["origin"])
	assert.Equal(t, float64(3), metadata["duration_ms"])
	assert.NotContains(t, metadata, "params")
}

func TestRecordLinkAudit(t *testing.T) {
	path := auditToFile(t)

	RecordLinkAudit(context.Background(), "degrade", "failure", map[string]interface{}{
		"error": "connection refused",
	})

	events := readAuditLines(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, "link", events[0]["type"])
	assert.Equal(t, "mcplink", events[0]["actor"])
	assert.Equal(t, "failure", events[0]["status"])
}

func TestRecordConfigAudit(t *testing.T) {
	path := auditToFile(t)

	RecordConfigAudit(context.Background(), "reload", "watcher", map[string]interface{}{
		"remote_changed": true,
	})

	events := readAuditLines(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, "config", events[0]["type"])
	assert.Equal(t, "watcher", events[0]["actor"])
	assert.Equal(t, "success", events[0]["status"])
}

func TestAuditLogger_CloseIsIdempotent(t *testing.T) {
	auditToFile(t)

	logger := GetAuditLogger()
	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())
}
