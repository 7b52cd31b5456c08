package orchestrator

import (
	"context"
	"fmt"

	"github.com/dajeong/miso/internal/observability"
	"github.com/dajeong/miso/pkg/execlog"
	"github.com/dajeong/miso/pkg/mcplink"
	"github.com/dajeong/miso/pkg/toolset"
)

// Status summarizes the orchestrator for health surfaces.
type Status struct {
	Engine      string          `json:"engine"`
	LocalTools  int             `json:"local_tools"`
	RemoteTools int             `json:"remote_tools"`
	LogSize     int             `json:"log_size"`
	Link        *mcplink.Status `json:"link,omitempty"`
}

// Status reports the engine, the current catalog split, and the remote
// link state.
func (o *Orchestrator) Status() Status {
	catalog := o.catalogSnapshot()
	status := Status{
		Engine:      o.engine.Name(),
		LocalTools:  catalog.CountByOrigin(toolset.OriginLocal),
		RemoteTools: catalog.CountByOrigin(toolset.OriginRemote),
		LogSize:     o.execLog.Len(),
	}
	if o.link != nil {
		linkStatus := o.link.Status()
		status.Link = &linkStatus
	}
	return status
}

// Catalog returns the current merged tool catalog.
func (o *Orchestrator) Catalog() []*toolset.Descriptor {
	return o.catalogSnapshot().Descriptors()
}

// Stats aggregates the retained execution records.
func (o *Orchestrator) Stats() execlog.Stats {
	return o.execLog.Stats()
}

// Records returns the n most recent execution records, oldest first.
func (o *Orchestrator) Records(n int) []execlog.Record {
	return o.execLog.Recent(n)
}

// ExportLog serializes the retained execution records in the given
// format: "json", "csv", or "text".
func (o *Orchestrator) ExportLog(format string) ([]byte, error) {
	return o.execLog.Export(format)
}

// ClearLog drops all retained execution records.
func (o *Orchestrator) ClearLog() {
	o.execLog.Clear()
	observability.SetExecutionLogSize(0)
}

// RetryRemote forces a reconnect attempt, ignoring the degraded-state
// cooldown. It blocks until the attempt resolves.
func (o *Orchestrator) RetryRemote(ctx context.Context) error {
	if o.link == nil {
		return fmt.Errorf("no remote link configured")
	}
	return o.link.Connect(ctx)
}

// Close releases the remote link.
func (o *Orchestrator) Close() {
	if o.link != nil {
		o.link.Close()
	}
}
