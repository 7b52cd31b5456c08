package toolinvoker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dajeong/miso/pkg/execlog"
	"github.com/dajeong/miso/pkg/mcplink"
	"github.com/dajeong/miso/pkg/toolset"
)

type stubLink struct {
	state  mcplink.State
	result *mcplink.CallResult
	err    error
	calls  atomic.Int32
}

func (s *stubLink) State() mcplink.State { return s.state }

func (s *stubLink) CallTool(_ context.Context, _ string, _ map[string]interface{}) (*mcplink.CallResult, error) {
	s.calls.Add(1)
	return s.result, s.err
}

func testCatalog(t *testing.T) *toolset.Registry {
	t.Helper()

	local := []toolset.Descriptor{
		{
			Name:        "add",
			Description: "Adds two numbers",
			Origin:      toolset.OriginLocal,
			Parameters: []toolset.Parameter{
				{Name: "a", Type: "number", Description: "First operand", Required: true},
				{Name: "b", Type: "number", Description: "Second operand", Required: true},
			},
			Handler: func(_ context.Context, args map[string]interface{}) (interface{}, error) {
				return args["a"].(float64) + args["b"].(float64), nil
			},
		},
		{
			Name:        "always_fails",
			Description: "Fails every time",
			Origin:      toolset.OriginLocal,
			Handler: func(context.Context, map[string]interface{}) (interface{}, error) {
				return nil, errors.New("division by zero")
			},
		},
		{
			Name:        "slow",
			Description: "Blocks until cancelled",
			Origin:      toolset.OriginLocal,
			Handler: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(5 * time.Second):
					return "done", nil
				}
			},
		},
	}
	remote := []toolset.Descriptor{
		{
			Name:   "search",
			Origin: toolset.OriginRemote,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{"type": "string"},
				},
				"required": []interface{}{"query"},
			},
		},
	}
	return toolset.Merge(local, remote)
}

func TestInvoke_LocalSuccess(t *testing.T) {
	inv := New(nil)
	catalog := testCatalog(t)

	record := inv.Invoke(context.Background(), catalog, "add", map[string]interface{}{"a": 2.0, "b": 3.0})

	require.True(t, record.Outcome.Succeeded())
	assert.Equal(t, 5.0, record.Outcome.Value)
	assert.Equal(t, "add", record.Tool)
	assert.Equal(t, "local", record.Origin)
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.Start.IsZero())
	assert.GreaterOrEqual(t, record.Duration, time.Duration(0))
}

func TestInvoke_UnknownTool(t *testing.T) {
	link := &stubLink{state: mcplink.StateHealthy}
	inv := New(link)

	record := inv.Invoke(context.Background(), testCatalog(t), "no_such_tool", nil)

	require.False(t, record.Outcome.Succeeded())
	assert.Equal(t, execlog.FailInvalidArguments, record.Outcome.FailureKind)
	assert.Contains(t, record.Outcome.Message, "tool not found")
	assert.Equal(t, "unknown", record.Origin)
	assert.Zero(t, link.calls.Load())
}

func TestInvoke_InvalidArguments(t *testing.T) {
	inv := New(nil)

	record := inv.Invoke(context.Background(), testCatalog(t), "add", map[string]interface{}{"a": "two", "b": 3.0})

	require.False(t, record.Outcome.Succeeded())
	assert.Equal(t, execlog.FailInvalidArguments, record.Outcome.FailureKind)
}

func TestInvoke_MissingRequiredArgument(t *testing.T) {
	inv := New(nil)

	record := inv.Invoke(context.Background(), testCatalog(t), "add", map[string]interface{}{"a": 2.0})

	require.False(t, record.Outcome.Succeeded())
	assert.Equal(t, execlog.FailInvalidArguments, record.Outcome.FailureKind)
}

func TestInvoke_RemoteArgumentsValidatedBeforeDispatch(t *testing.T) {
	link := &stubLink{state: mcplink.StateHealthy}
	inv := New(link)

	record := inv.Invoke(context.Background(), testCatalog(t), "search", map[string]interface{}{"query": 42})

	require.False(t, record.Outcome.Succeeded())
	assert.Equal(t, execlog.FailInvalidArguments, record.Outcome.FailureKind)
	assert.Zero(t, link.calls.Load(), "invalid arguments must not reach the remote server")
}

func TestInvoke_LocalDomainError(t *testing.T) {
	inv := New(nil)

	record := inv.Invoke(context.Background(), testCatalog(t), "always_fails", nil)

	require.False(t, record.Outcome.Succeeded())
	assert.Equal(t, execlog.FailDomainError, record.Outcome.FailureKind)
	assert.Equal(t, "division by zero", record.Outcome.Message)
}

func TestInvoke_LocalTimeout(t *testing.T) {
	inv := New(nil)
	inv.SetLocalTimeout(30 * time.Millisecond)

	record := inv.Invoke(context.Background(), testCatalog(t), "slow", nil)

	require.False(t, record.Outcome.Succeeded())
	assert.Equal(t, execlog.FailTimeout, record.Outcome.FailureKind)
	assert.Contains(t, record.Outcome.Message, "timeout")
}

func TestInvoke_RemoteSuccess(t *testing.T) {
	link := &stubLink{
		state:  mcplink.StateHealthy,
		result: &mcplink.CallResult{Content: "2 pages found"},
	}
	inv := New(link)

	record := inv.Invoke(context.Background(), testCatalog(t), "search", map[string]interface{}{"query": "meeting notes"})

	require.True(t, record.Outcome.Succeeded())
	assert.Equal(t, "2 pages found", record.Outcome.Value)
	assert.Equal(t, "remote", record.Origin)
	assert.Equal(t, int32(1), link.calls.Load())
}

func TestInvoke_RemoteStructuredContentWins(t *testing.T) {
	structured := map[string]interface{}{"pages": 2.0}
	link := &stubLink{
		state:  mcplink.StateHealthy,
		result: &mcplink.CallResult{Content: "2 pages found", Structured: structured},
	}
	inv := New(link)

	record := inv.Invoke(context.Background(), testCatalog(t), "search", map[string]interface{}{"query": "notes"})

	require.True(t, record.Outcome.Succeeded())
	assert.Equal(t, structured, record.Outcome.Value)
}

func TestInvoke_RemoteUnavailableWhileDegraded(t *testing.T) {
	link := &stubLink{state: mcplink.StateDegraded}
	inv := New(link)

	record := inv.Invoke(context.Background(), testCatalog(t), "search", map[string]interface{}{"query": "notes"})

	require.False(t, record.Outcome.Succeeded())
	assert.Equal(t, execlog.FailUnavailable, record.Outcome.FailureKind)
	assert.Zero(t, link.calls.Load())
}

func TestInvoke_RemoteUnavailableWithNilLink(t *testing.T) {
	inv := New(nil)

	record := inv.Invoke(context.Background(), testCatalog(t), "search", map[string]interface{}{"query": "notes"})

	require.False(t, record.Outcome.Succeeded())
	assert.Equal(t, execlog.FailUnavailable, record.Outcome.FailureKind)
}

func TestInvoke_RemoteTimeout(t *testing.T) {
	link := &stubLink{
		state: mcplink.StateHealthy,
		err:   fmt.Errorf("remote call timed out: %w", context.DeadlineExceeded),
	}
	inv := New(link)

	record := inv.Invoke(context.Background(), testCatalog(t), "search", map[string]interface{}{"query": "notes"})

	require.False(t, record.Outcome.Succeeded())
	assert.Equal(t, execlog.FailTimeout, record.Outcome.FailureKind)
}

func TestInvoke_RemoteProtocolError(t *testing.T) {
	link := &stubLink{
		state: mcplink.StateHealthy,
		err:   fmt.Errorf("%w: calling tool: no such tool", mcplink.ErrRemoteProtocol),
	}
	inv := New(link)

	record := inv.Invoke(context.Background(), testCatalog(t), "search", map[string]interface{}{"query": "notes"})

	require.False(t, record.Outcome.Succeeded())
	assert.Equal(t, execlog.FailRemoteProtocol, record.Outcome.FailureKind)
}

func TestInvoke_RemoteToolError(t *testing.T) {
	link := &stubLink{
		state:  mcplink.StateHealthy,
		result: &mcplink.CallResult{Content: "permission denied", IsError: true},
	}
	inv := New(link)

	record := inv.Invoke(context.Background(), testCatalog(t), "search", map[string]interface{}{"query": "notes"})

	require.False(t, record.Outcome.Succeeded())
	assert.Equal(t, execlog.FailDomainError, record.Outcome.FailureKind)
	assert.Equal(t, "permission denied", record.Outcome.Message)
}

func TestInvoke_ParamsAreCopied(t *testing.T) {
	inv := New(nil)
	args := map[string]interface{}{"a": 2.0, "b": 3.0}

	record := inv.Invoke(context.Background(), testCatalog(t), "add", args)
	args["a"] = 99.0

	assert.Equal(t, 2.0, record.Params["a"])
}
