package reasoner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-sonnet-20241022"

// AnthropicEngine plans with the Anthropic Messages API.
type AnthropicEngine struct {
	client       anthropic.Client
	model        string
	maxTokens    int
	temperature  float64
	systemPrompt string
	maxRetries   int
}

// NewAnthropicEngine builds an engine backed by the Anthropic API.
func NewAnthropicEngine(cfg EngineConfig) *AnthropicEngine {
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	return &AnthropicEngine{
		client:       anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:        model,
		maxTokens:    maxTokens,
		temperature:  cfg.Temperature,
		systemPrompt: systemPrompt,
		maxRetries:   cfg.MaxRetries,
	}
}

func (e *AnthropicEngine) Name() string { return "anthropic" }

// Plan sends the conversation to the model and translates the response
// into a reply and tool-call requests.
func (e *AnthropicEngine) Plan(ctx context.Context, req PlanRequest) (PlanResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		Messages:  e.buildMessages(req),
		MaxTokens: int64(e.maxTokens),
	}
	if e.systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: e.systemPrompt}}
	}
	if e.temperature > 0 {
		params.Temperature = anthropic.Float(e.temperature)
	}
	if tools := anthropicTools(req.Catalog); len(tools) > 0 {
		params.Tools = tools
	}

	var response *anthropic.Message
	err := retryCall(ctx, e.maxRetries, func(ctx context.Context) error {
		var callErr error
		response, callErr = e.client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return PlanResponse{}, fmt.Errorf("anthropic plan failed: %w", err)
	}

	plan := PlanResponse{}
	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			plan.Reply += b.Text
		case anthropic.ToolUseBlock:
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(b.JSON.Input.Raw()), &args); err != nil {
				return PlanResponse{}, fmt.Errorf("failed to parse tool input: %w", err)
			}
			plan.ToolCalls = append(plan.ToolCalls, ToolCall{
				ID:   b.ID,
				Name: b.Name,
				Args: args,
			})
		}
	}
	return plan, nil
}

// buildMessages lays out history, the current message, and any tool
// outcomes as an assistant tool_use turn followed by a user tool_result
// turn, which is the shape the Messages API requires.
func (e *AnthropicEngine) buildMessages(req PlanRequest) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(req.History)+3)

	for _, turn := range req.History {
		switch turn.Role {
		case "user":
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		case "assistant":
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(turn.Content)},
			})
		}
	}

	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Message)))

	if len(req.Outcomes) > 0 {
		uses := make([]anthropic.ContentBlockParamUnion, 0, len(req.Outcomes))
		results := make([]anthropic.ContentBlockParamUnion, 0, len(req.Outcomes))
		for _, outcome := range req.Outcomes {
			uses = append(uses, anthropic.NewToolUseBlock(outcome.Call.ID, outcome.Call.Args, outcome.Call.Name))
			content := outcome.Output
			isError := outcome.Error != ""
			if isError {
				content = outcome.Error
			}
			results = append(results, anthropic.NewToolResultBlock(outcome.Call.ID, content, isError))
		}
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleAssistant,
			Content: uses,
		})
		messages = append(messages, anthropic.NewUserMessage(results...))
	}

	return messages
}

func anthropicTools(catalog []CatalogTool) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(catalog))
	for _, tool := range catalog {
		param := anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
		}
		if tool.InputSchema != nil {
			param.InputSchema = anthropic.ToolInputSchemaParam{
				Properties: tool.InputSchema["properties"],
				Required:   requiredList(tool.InputSchema["required"]),
			}
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &param})
	}
	return tools
}

// requiredList tolerates both decoded-JSON ([]interface{}) and native
// ([]string) forms of a schema's required field.
func requiredList(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
