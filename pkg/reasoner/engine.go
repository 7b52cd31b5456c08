package reasoner

import "context"

// Turn is a single prior exchange in the conversation.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ToolCall is a request from the engine to execute a catalog tool.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// ToolOutcome carries the result of an executed tool call back to the
// engine so it can fold the result into its reply. Error is empty on
// success.
type ToolOutcome struct {
	Call   ToolCall `json:"call"`
	Output string   `json:"output,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// CatalogTool describes one invocable tool. Engines see no origin
// information; a remote tool is advertised exactly like a local one.
type CatalogTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// PlanRequest is everything an engine needs to plan the next step.
type PlanRequest struct {
	Message  string
	History  []Turn
	Catalog  []CatalogTool
	Outcomes []ToolOutcome
}

// PlanResponse is the engine's decision: tool calls to run, a finished
// reply, or both (a reply alongside calls is kept and shown once the
// calls complete).
type PlanResponse struct {
	Reply     string
	ToolCalls []ToolCall
}

// Engine plans tool usage and composes replies.
type Engine interface {
	// Plan produces the next step for the conversation. When
	// req.Outcomes is non-empty the engine is being asked to fold
	// those results into its answer.
	Plan(ctx context.Context, req PlanRequest) (PlanResponse, error)

	// Name identifies the engine in logs and metrics.
	Name() string
}
