package mcplink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dajeong/miso/pkg/toolset"
)

// fakeRemote hosts an in-memory MCP server and hands the manager a fresh
// client transport per connection attempt, optionally refusing the first
// few attempts.
type fakeRemote struct {
	t      *testing.T
	server *mcp.Server

	mu       sync.Mutex
	refusals int
	attempts int
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{Name: "fake-remote", Version: "0.0.1"}, &mcp.ServerOptions{HasTools: true})

	server.AddTool(&mcp.Tool{
		Name:        "search",
		Description: "Search pages in the connected workspace",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Search query"},
			},
			"required": []any{"query"},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "2 pages found"}},
		}, nil
	})

	server.AddTool(&mcp.Tool{
		Name:        "create_page",
		Description: "Create a page in the connected workspace",
		InputSchema: map[string]any{"type": "object"},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "permission denied"}},
		}, nil
	})

	return &fakeRemote{t: t, server: server}
}

// refuse makes the next n connection attempts fail at the transport layer.
func (f *fakeRemote) refuse(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refusals = f.attempts + n
}

func (f *fakeRemote) connectAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeRemote) transport() mcp.Transport {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts++
	if f.attempts <= f.refusals {
		return refusedTransport{}
	}

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	if _, err := f.server.Connect(context.Background(), serverTransport, nil); err != nil {
		f.t.Fatalf("server connect: %v", err)
	}
	return clientTransport
}

type refusedTransport struct{}

func (refusedTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	return nil, errors.New("dial tcp 127.0.0.1:443: connect: connection refused")
}

func testConfig() Config {
	return Config{
		Endpoint:          "https://tools.example.test/mcp",
		ConnectTimeout:    2 * time.Second,
		MaxRetries:        3,
		CallTimeout:       2 * time.Second,
		FailureThreshold:  5,
		ReconnectCooldown: time.Hour,
		BackoffBase:       time.Millisecond,
		BackoffMax:        4 * time.Millisecond,
	}
}

func newTestManager(t *testing.T, remote *fakeRemote, cfg Config) *Manager {
	t.Helper()
	m := NewWithTransport(cfg, remote.transport)
	t.Cleanup(m.Close)
	return m
}

func TestManager_Connect_Healthy(t *testing.T) {
	remote := newFakeRemote(t)
	m := newTestManager(t, remote, testConfig())

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, StateHealthy, m.State())

	tools := m.Tools()
	require.Len(t, tools, 2)

	byName := map[string]toolset.Descriptor{}
	for _, tool := range tools {
		byName[tool.Name] = tool
		assert.Equal(t, toolset.OriginRemote, tool.Origin)
	}
	require.Contains(t, byName, "search")
	require.Contains(t, byName, "create_page")

	search := byName["search"]
	require.NotNil(t, search.InputSchema)
	require.Len(t, search.Parameters, 1)
	assert.Equal(t, "query", search.Parameters[0].Name)
	assert.True(t, search.Parameters[0].Required)
}

func TestManager_Connect_RetriesThenHealthy(t *testing.T) {
	remote := newFakeRemote(t)
	remote.refuse(2)
	m := newTestManager(t, remote, testConfig())

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, StateHealthy, m.State())
	assert.Equal(t, 3, remote.connectAttempts())
}

func TestManager_Connect_RetriesExhausted(t *testing.T) {
	remote := newFakeRemote(t)
	remote.refuse(100)
	cfg := testConfig()
	cfg.MaxRetries = 2
	m := newTestManager(t, remote, cfg)

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, ErrConnectionRefused)
	assert.Equal(t, StateDegraded, m.State())
	assert.Nil(t, m.Tools())
	assert.Equal(t, 2, remote.connectAttempts())
}

func TestManager_Connect_SingleFlight(t *testing.T) {
	remote := newFakeRemote(t)
	m := newTestManager(t, remote, testConfig())

	m.connecting.Store(true)
	err := m.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnectInFlight)
	m.connecting.Store(false)
}

func TestManager_Connect_CancelledContext(t *testing.T) {
	remote := newFakeRemote(t)
	m := newTestManager(t, remote, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Connect(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateDegraded, m.State())
}

func TestManager_CallTool_Success(t *testing.T) {
	remote := newFakeRemote(t)
	m := newTestManager(t, remote, testConfig())
	require.NoError(t, m.Connect(context.Background()))

	res, err := m.CallTool(context.Background(), "search", map[string]interface{}{"query": "meeting minutes"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "2 pages found", res.Content)
	assert.Zero(t, m.ConsecutiveFailures())
}

func TestManager_CallTool_WhileNotHealthy(t *testing.T) {
	remote := newFakeRemote(t)
	m := newTestManager(t, remote, testConfig())

	_, err := m.CallTool(context.Background(), "search", map[string]interface{}{"query": "x"})
	assert.ErrorIs(t, err, ErrNotHealthy)
	assert.Zero(t, remote.connectAttempts())
}

func TestManager_CallTool_ToolErrorIsNotALinkFailure(t *testing.T) {
	remote := newFakeRemote(t)
	m := newTestManager(t, remote, testConfig())
	require.NoError(t, m.Connect(context.Background()))

	res, err := m.CallTool(context.Background(), "create_page", map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "permission denied", res.Content)
	assert.Zero(t, m.ConsecutiveFailures())
	assert.Equal(t, StateHealthy, m.State())
}

func TestManager_CallTool_ProtocolErrorCountsFailure(t *testing.T) {
	remote := newFakeRemote(t)
	m := newTestManager(t, remote, testConfig())
	require.NoError(t, m.Connect(context.Background()))

	_, err := m.CallTool(context.Background(), "no_such_tool", map[string]interface{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteProtocol)
	assert.Equal(t, 1, m.ConsecutiveFailures())
	assert.Equal(t, StateHealthy, m.State())

	// A later success clears the streak.
	res, err := m.CallTool(context.Background(), "search", map[string]interface{}{"query": "x"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Zero(t, m.ConsecutiveFailures())
}

func TestManager_DegradedAfterFailureThreshold(t *testing.T) {
	remote := newFakeRemote(t)
	cfg := testConfig()
	cfg.FailureThreshold = 2
	m := newTestManager(t, remote, cfg)
	require.NoError(t, m.Connect(context.Background()))

	_, err := m.CallTool(context.Background(), "no_such_tool", map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, StateHealthy, m.State())

	_, err = m.CallTool(context.Background(), "no_such_tool", map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, StateDegraded, m.State())

	// Degraded short-circuits before any network traffic.
	_, err = m.CallTool(context.Background(), "search", map[string]interface{}{"query": "x"})
	assert.ErrorIs(t, err, ErrNotHealthy)
	assert.Nil(t, m.Tools())
}

func TestManager_ReconnectFromDegradedRestoresTools(t *testing.T) {
	remote := newFakeRemote(t)
	cfg := testConfig()
	cfg.FailureThreshold = 1
	m := newTestManager(t, remote, cfg)
	require.NoError(t, m.Connect(context.Background()))

	_, err := m.CallTool(context.Background(), "no_such_tool", map[string]interface{}{})
	require.Error(t, err)
	require.Equal(t, StateDegraded, m.State())
	require.Nil(t, m.Tools())

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, StateHealthy, m.State())
	require.Len(t, m.Tools(), 2)
	assert.Zero(t, m.ConsecutiveFailures())
}

func TestManager_Nudge_HonorsCooldown(t *testing.T) {
	remote := newFakeRemote(t)
	remote.refuse(1)
	cfg := testConfig()
	cfg.MaxRetries = 1
	cfg.ReconnectCooldown = time.Hour
	m := newTestManager(t, remote, cfg)

	require.Error(t, m.Connect(context.Background()))
	require.Equal(t, StateDegraded, m.State())
	attempts := remote.connectAttempts()

	m.Nudge()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, attempts, remote.connectAttempts())
	assert.Equal(t, StateDegraded, m.State())
}

func TestManager_Nudge_ReconnectsAfterCooldown(t *testing.T) {
	remote := newFakeRemote(t)
	remote.refuse(1)
	cfg := testConfig()
	cfg.MaxRetries = 1
	cfg.ReconnectCooldown = time.Millisecond
	m := newTestManager(t, remote, cfg)

	require.Error(t, m.Connect(context.Background()))
	require.Equal(t, StateDegraded, m.State())

	time.Sleep(5 * time.Millisecond)
	m.Nudge()

	require.Eventually(t, func() bool {
		return m.State() == StateHealthy
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, m.Tools(), 2)
}

func TestManager_Nudge_NoOpWhenHealthy(t *testing.T) {
	remote := newFakeRemote(t)
	m := newTestManager(t, remote, testConfig())
	require.NoError(t, m.Connect(context.Background()))
	attempts := remote.connectAttempts()

	m.Nudge()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, attempts, remote.connectAttempts())
}

func TestManager_Status(t *testing.T) {
	remote := newFakeRemote(t)
	m := newTestManager(t, remote, testConfig())

	status := m.Status()
	assert.Equal(t, StateDisconnected, status.State)
	assert.Zero(t, status.Tools)

	require.NoError(t, m.Connect(context.Background()))
	status = m.Status()
	assert.Equal(t, StateHealthy, status.State)
	assert.Equal(t, 2, status.Tools)
	assert.Empty(t, status.LastError)
	assert.True(t, status.DegradedSince.IsZero())
}

func TestManager_Close(t *testing.T) {
	remote := newFakeRemote(t)
	m := NewWithTransport(testConfig(), remote.transport)
	require.NoError(t, m.Connect(context.Background()))

	m.Close()
	assert.Equal(t, StateDisconnected, m.State())
	assert.Nil(t, m.Tools())
}

func TestManager_RetrySchedule(t *testing.T) {
	remote := newFakeRemote(t)
	m := newTestManager(t, remote, testConfig())

	require.NoError(t, m.StartRetrySchedule("@every 1h"))
	assert.Error(t, m.StartRetrySchedule("@every 1h"))
	m.StopRetrySchedule()
	require.NoError(t, m.StartRetrySchedule("@every 1h"))
	m.StopRetrySchedule()

	assert.Error(t, m.StartRetrySchedule("not a schedule"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "healthy", StateHealthy.String())
	assert.Equal(t, "degraded", StateDegraded.String())
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, 5*time.Minute, cfg.ReconnectCooldown)
	assert.Equal(t, 2*time.Second, cfg.BackoffBase)
	assert.Equal(t, 30*time.Second, cfg.BackoffMax)
}
