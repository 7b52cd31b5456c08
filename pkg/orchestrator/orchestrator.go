package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dajeong/miso/internal/observability"
	"github.com/dajeong/miso/internal/tracing"
	"github.com/dajeong/miso/pkg/coretools"
	"github.com/dajeong/miso/pkg/execlog"
	"github.com/dajeong/miso/pkg/mcplink"
	"github.com/dajeong/miso/pkg/reasoner"
	"github.com/dajeong/miso/pkg/toolinvoker"
	"github.com/dajeong/miso/pkg/toolset"
)

const (
	// maxPlanTurns bounds plan-execute cycles per message so a looping
	// engine cannot spin forever.
	maxPlanTurns = 4
	// maxMessageLength is the per-message input guard, in characters.
	maxMessageLength = 10000
)

const (
	emptyMessageReply    = "Please enter a message."
	oversizeMessageReply = "That message is too long. Please keep it under 10,000 characters."
	engineFailureReply   = "I hit a problem while working on your request. Please try again in a moment."
	turnBudgetReply      = "I could not finish that request within my tool budget. Please try rephrasing it or splitting it into smaller steps."
)

// Link is the remote-side surface the orchestrator depends on. It is
// satisfied by *mcplink.Manager.
type Link interface {
	State() mcplink.State
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcplink.CallResult, error)
	Tools() []toolset.Descriptor
	Nudge()
	Connect(ctx context.Context) error
	Status() mcplink.Status
	Close()
}

// Orchestrator wires the reasoning engine, tool catalog, invoker, and
// execution log behind a single Process call.
type Orchestrator struct {
	engine     reasoner.Engine
	link       Link
	invoker    *toolinvoker.Invoker
	localTools []toolset.Descriptor
	execLog    *execlog.Log
	maxTurns   int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRemoteLink attaches the remote MCP link.
func WithRemoteLink(link Link) Option {
	return func(o *Orchestrator) {
		o.link = link
	}
}

// WithLocalTools sets the local tool descriptors. The default is the
// built-in coretools set.
func WithLocalTools(tools []toolset.Descriptor) Option {
	return func(o *Orchestrator) {
		o.localTools = tools
	}
}

// WithLogCapacity bounds the execution log.
func WithLogCapacity(capacity int) Option {
	return func(o *Orchestrator) {
		o.execLog = execlog.NewLog(capacity)
	}
}

// WithMaxTurns overrides the plan-execute cycle bound.
func WithMaxTurns(turns int) Option {
	return func(o *Orchestrator) {
		if turns > 0 {
			o.maxTurns = turns
		}
	}
}

// WithInvoker replaces the tool invoker.
func WithInvoker(inv *toolinvoker.Invoker) Option {
	return func(o *Orchestrator) {
		o.invoker = inv
	}
}

// New builds an orchestrator around the given reasoning engine.
func New(engine reasoner.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:     engine,
		localTools: coretools.Descriptors(),
		execLog:    execlog.NewLog(execlog.DefaultCapacity),
		maxTurns:   maxPlanTurns,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.invoker == nil {
		o.invoker = toolinvoker.New(o.link)
	}

	log.Info().
		Str("engine", engine.Name()).
		Int("local_tools", len(o.localTools)).
		Bool("remote_link", o.link != nil).
		Msg("Orchestrator initialized")

	return o
}

// Result is the outcome of processing one user message.
type Result struct {
	Reply   string
	Records []execlog.Record
}

// Process handles one user message end to end and returns the reply
// together with the execution records produced along the way. Engine
// failures degrade to an apologetic reply; only context cancellation is
// surfaced as an error.
func (o *Orchestrator) Process(ctx context.Context, message string, history []reasoner.Turn) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.NewRequestContext(ctx)
	}
	ctx, span := tracing.StartSpan(
		ctx,
		"miso.orchestrator",
		"orchestrator.process",
		attribute.Int("message_chars", len([]rune(message))),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	if strings.TrimSpace(message) == "" {
		return Result{Reply: emptyMessageReply}, nil
	}
	if len([]rune(message)) > maxMessageLength {
		logger.Warn().Int("chars", len([]rune(message))).Msg("Refusing oversize message")
		return Result{Reply: oversizeMessageReply}, nil
	}

	// Give a degraded link a chance to come back before planning; the
	// nudge is asynchronous and never delays this turn.
	if o.link != nil {
		o.link.Nudge()
	}

	catalog := o.catalogSnapshot()
	engineCatalog := catalogForEngine(catalog)

	var (
		records  []execlog.Record
		outcomes []reasoner.ToolOutcome
	)

	for turn := 0; turn < o.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		planStart := time.Now()
		plan, err := o.engine.Plan(ctx, reasoner.PlanRequest{
			Message:  message,
			History:  history,
			Catalog:  engineCatalog,
			Outcomes: outcomes,
		})
		observability.RecordPlan(o.engine.Name(), time.Since(planStart), err == nil)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error().Err(err).Str("engine", o.engine.Name()).Msg("Engine plan failed")
			return Result{Reply: engineFailureReply, Records: records}, nil
		}

		if len(plan.ToolCalls) == 0 {
			logger.Debug().
				Int("turns", turn+1).
				Int("tool_calls", len(records)).
				Msg("Message processed")
			return Result{Reply: plan.Reply, Records: records}, nil
		}

		for _, call := range plan.ToolCalls {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			record := o.invoker.Invoke(ctx, catalog, call.Name, call.Args)
			o.execLog.Append(record)
			observability.SetExecutionLogSize(o.execLog.Len())

			records = append(records, record)
			outcomes = append(outcomes, outcomeForEngine(call, record))
		}
	}

	logger.Warn().Int("max_turns", o.maxTurns).Msg("Plan turn budget exhausted")
	return Result{Reply: turnBudgetReply, Records: records}, nil
}

// catalogSnapshot merges local tools with whatever the link currently
// advertises. Remote tools vanish from the snapshot whenever the link
// is not healthy.
func (o *Orchestrator) catalogSnapshot() *toolset.Registry {
	var remote []toolset.Descriptor
	if o.link != nil {
		remote = o.link.Tools()
	}
	catalog := toolset.Merge(o.localTools, remote)

	observability.SetCatalogSize("local", catalog.CountByOrigin(toolset.OriginLocal))
	observability.SetCatalogSize("remote", catalog.CountByOrigin(toolset.OriginRemote))

	return catalog
}

func catalogForEngine(catalog *toolset.Registry) []reasoner.CatalogTool {
	descs := catalog.Descriptors()
	tools := make([]reasoner.CatalogTool, 0, len(descs))
	for _, desc := range descs {
		tools = append(tools, reasoner.CatalogTool{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: desc.SchemaMap(),
		})
	}
	return tools
}

func outcomeForEngine(call reasoner.ToolCall, record execlog.Record) reasoner.ToolOutcome {
	outcome := reasoner.ToolOutcome{Call: call}
	if record.Outcome.Succeeded() {
		outcome.Output = formatValue(record.Outcome.Value)
	} else {
		outcome.Error = record.Outcome.Message
	}
	return outcome
}

// formatValue renders a tool result for the engine. Whole floats print
// without a trailing ".0" so arithmetic answers read naturally.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return coretools.FormatNumber(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
