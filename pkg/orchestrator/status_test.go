package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dajeong/miso/pkg/mcplink"
	"github.com/dajeong/miso/pkg/reasoner"
	"github.com/dajeong/miso/pkg/toolset"
)

func TestStatus(t *testing.T) {
	engine := &scriptedEngine{}
	link := &stubOrchLink{
		state: mcplink.StateHealthy,
		tools: []toolset.Descriptor{searchDescriptor()},
	}
	o := New(engine, WithRemoteLink(link))

	status := o.Status()

	assert.Equal(t, "scripted", status.Engine)
	assert.Equal(t, 5, status.LocalTools)
	assert.Equal(t, 1, status.RemoteTools)
	assert.Equal(t, 0, status.LogSize)
	require.NotNil(t, status.Link)
	assert.Equal(t, mcplink.StateHealthy, status.Link.State)
}

func TestStatus_NoLink(t *testing.T) {
	o := New(&scriptedEngine{})

	status := o.Status()

	assert.Equal(t, 0, status.RemoteTools)
	assert.Nil(t, status.Link)
}

func TestCatalog(t *testing.T) {
	o := New(&scriptedEngine{})

	descs := o.Catalog()

	require.Len(t, descs, 5)
	assert.Equal(t, "current_date", descs[0].Name)
}

func TestStatsAndRecordsReflectProcessing(t *testing.T) {
	engine := &scriptedEngine{
		plans: []reasoner.PlanResponse{
			{ToolCalls: []reasoner.ToolCall{
				{ID: "call_1", Name: "add", Args: map[string]interface{}{"a": 1.0, "b": 2.0}},
			}},
			{Reply: "1 + 2 = 3"},
		},
	}
	o := New(engine)

	_, err := o.Process(context.Background(), "1 + 2", nil)
	require.NoError(t, err)

	stats := o.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Successes)

	records := o.Records(10)
	require.Len(t, records, 1)
	assert.Equal(t, "add", records[0].Tool)
}

func TestExportLog(t *testing.T) {
	o := New(&scriptedEngine{
		plans: []reasoner.PlanResponse{
			{ToolCalls: []reasoner.ToolCall{{ID: "call_1", Name: "current_date"}}},
			{Reply: "done"},
		},
	})

	_, err := o.Process(context.Background(), "date please", nil)
	require.NoError(t, err)

	data, err := o.ExportLog("json")
	require.NoError(t, err)
	assert.Contains(t, string(data), "current_date")

	_, err = o.ExportLog("xml")
	require.Error(t, err)
}

func TestClearLog(t *testing.T) {
	o := New(&scriptedEngine{
		plans: []reasoner.PlanResponse{
			{ToolCalls: []reasoner.ToolCall{{ID: "call_1", Name: "current_date"}}},
			{Reply: "done"},
		},
	})

	_, err := o.Process(context.Background(), "date please", nil)
	require.NoError(t, err)
	require.Equal(t, 1, o.Status().LogSize)

	o.ClearLog()
	assert.Equal(t, 0, o.Status().LogSize)
}

func TestRetryRemote(t *testing.T) {
	link := &stubOrchLink{state: mcplink.StateDegraded}
	o := New(&scriptedEngine{}, WithRemoteLink(link))

	require.NoError(t, o.RetryRemote(context.Background()))
	assert.Equal(t, int32(1), link.connects.Load())
}

func TestRetryRemote_PropagatesError(t *testing.T) {
	link := &stubOrchLink{state: mcplink.StateDegraded, connectErr: errors.New("connection refused")}
	o := New(&scriptedEngine{}, WithRemoteLink(link))

	err := o.RetryRemote(context.Background())
	require.Error(t, err)
}

func TestRetryRemote_NoLink(t *testing.T) {
	o := New(&scriptedEngine{})

	err := o.RetryRemote(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no remote link")
}

func TestClose(t *testing.T) {
	link := &stubOrchLink{state: mcplink.StateHealthy}
	o := New(&scriptedEngine{}, WithRemoteLink(link))

	o.Close()
	assert.True(t, link.closed.Load())
}
