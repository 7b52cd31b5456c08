package toolinvoker

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"github.com/dajeong/miso/internal/observability"
	"github.com/dajeong/miso/pkg/execlog"
	"github.com/dajeong/miso/pkg/mcplink"
	"github.com/dajeong/miso/pkg/toolset"
)

// DefaultLocalTimeout bounds local handler execution.
const DefaultLocalTimeout = 10 * time.Second

// RemoteLink is the slice of the remote connection the invoker needs.
type RemoteLink interface {
	State() mcplink.State
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcplink.CallResult, error)
}

// Invoker validates and executes tool calls.
type Invoker struct {
	link         RemoteLink
	localTimeout time.Duration
}

// New creates an invoker dispatching remote calls through link. A nil
// link is allowed; remote tools then fail as unavailable.
func New(link RemoteLink) *Invoker {
	return &Invoker{
		link:         link,
		localTimeout: DefaultLocalTimeout,
	}
}

// SetLocalTimeout overrides the execution budget for local handlers.
func (inv *Invoker) SetLocalTimeout(d time.Duration) {
	if d > 0 {
		inv.localTimeout = d
	}
}

// Invoke runs the named tool from the catalog and returns a record of
// the attempt. It always returns a record; failures are classified in
// the record's outcome rather than surfaced as errors.
func (inv *Invoker) Invoke(ctx context.Context, catalog *toolset.Registry, name string, args map[string]interface{}) execlog.Record {
	id, _ := gonanoid.New()
	record := execlog.Record{
		ID:     id,
		Tool:   name,
		Origin: "unknown",
		Params: copyArgs(args),
		Start:  time.Now(),
	}

	desc, ok := catalog.Lookup(name)
	if !ok {
		return inv.finish(ctx, record, execlog.Failure(execlog.FailInvalidArguments, fmt.Sprintf("tool not found: %s", name)))
	}
	record.Origin = desc.Origin.String()

	if err := catalog.ValidateArgs(name, args); err != nil {
		return inv.finish(ctx, record, execlog.Failure(execlog.FailInvalidArguments, err.Error()))
	}

	var outcome execlog.Outcome
	switch desc.Origin {
	case toolset.OriginLocal:
		outcome = inv.invokeLocal(ctx, desc, args)
	case toolset.OriginRemote:
		outcome = inv.invokeRemote(ctx, name, args)
	default:
		outcome = execlog.Failure(execlog.FailInvalidArguments, fmt.Sprintf("unsupported tool origin: %s", desc.Origin))
	}
	return inv.finish(ctx, record, outcome)
}

// invokeLocal runs a local handler in its own goroutine so a stuck
// handler cannot wedge the caller past the timeout.
func (inv *Invoker) invokeLocal(ctx context.Context, desc *toolset.Descriptor, args map[string]interface{}) execlog.Outcome {
	if desc.Handler == nil {
		return execlog.Failure(execlog.FailInvalidArguments, fmt.Sprintf("tool %s has no handler", desc.Name))
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, inv.localTimeout)
	defer cancel()

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		result, err := desc.Handler(timeoutCtx, args)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- result
		}
	}()

	select {
	case result := <-resultChan:
		return execlog.Success(result)
	case err := <-errChan:
		return execlog.Failure(execlog.FailDomainError, err.Error())
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return execlog.Failure(execlog.FailTimeout, ctx.Err().Error())
		}
		return execlog.Failure(execlog.FailTimeout, fmt.Sprintf("tool execution timeout after %v", inv.localTimeout))
	}
}

// invokeRemote dispatches through the MCP link. The link enforces its
// own per-call timeout.
func (inv *Invoker) invokeRemote(ctx context.Context, name string, args map[string]interface{}) execlog.Outcome {
	if inv.link == nil || inv.link.State() != mcplink.StateHealthy {
		return execlog.Failure(execlog.FailUnavailable, "remote tools are unavailable: link is not healthy")
	}

	res, err := inv.link.CallTool(ctx, name, args)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return execlog.Failure(execlog.FailTimeout, err.Error())
		case errors.Is(err, mcplink.ErrNotHealthy):
			return execlog.Failure(execlog.FailUnavailable, err.Error())
		default:
			return execlog.Failure(execlog.FailRemoteProtocol, err.Error())
		}
	}
	if res == nil {
		return execlog.Failure(execlog.FailRemoteProtocol, "remote call returned no result")
	}

	if res.IsError {
		msg := res.Content
		if msg == "" {
			msg = "tool reported an error"
		}
		return execlog.Failure(execlog.FailDomainError, msg)
	}
	if res.Structured != nil {
		return execlog.Success(res.Structured)
	}
	return execlog.Success(res.Content)
}

func (inv *Invoker) finish(ctx context.Context, record execlog.Record, outcome execlog.Outcome) execlog.Record {
	record.Duration = time.Since(record.Start)
	record.Outcome = outcome

	outcomeLabel := "success"
	if !outcome.Succeeded() {
		outcomeLabel = string(outcome.FailureKind)
	}
	observability.RecordToolInvocation(record.Tool, record.Origin, outcomeLabel, record.Duration)
	observability.RecordInvocationAudit(ctx, record.ID, record.Tool, record.Origin, outcomeLabel, record.Duration)

	if outcome.Succeeded() {
		log.Debug().
			Str("id", record.ID).
			Str("tool", record.Tool).
			Str("origin", record.Origin).
			Dur("duration", record.Duration).
			Msg("Tool invocation completed")
	} else {
		log.Warn().
			Str("id", record.ID).
			Str("tool", record.Tool).
			Str("origin", record.Origin).
			Str("failure_kind", string(outcome.FailureKind)).
			Str("error", outcome.Message).
			Dur("duration", record.Duration).
			Msg("Tool invocation failed")
	}
	return record
}

func copyArgs(args map[string]interface{}) map[string]interface{} {
	if args == nil {
		return nil
	}
	copied := make(map[string]interface{}, len(args))
	for k, v := range args {
		copied[k] = v
	}
	return copied
}
