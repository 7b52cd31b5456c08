package reasoner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIEngine plans with the OpenAI Chat Completions API.
type OpenAIEngine struct {
	client       openai.Client
	model        string
	maxTokens    int
	temperature  float64
	systemPrompt string
	maxRetries   int
}

// NewOpenAIEngine builds an engine backed by the OpenAI API.
func NewOpenAIEngine(cfg EngineConfig) *OpenAIEngine {
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	return &OpenAIEngine{
		client:       openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:        model,
		maxTokens:    maxTokens,
		temperature:  cfg.Temperature,
		systemPrompt: systemPrompt,
		maxRetries:   cfg.MaxRetries,
	}
}

func (e *OpenAIEngine) Name() string { return "openai" }

// Plan sends the conversation to the model and translates the response
// into a reply and tool-call requests.
func (e *OpenAIEngine) Plan(ctx context.Context, req PlanRequest) (PlanResponse, error) {
	messages, err := e.buildMessages(req)
	if err != nil {
		return PlanResponse{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(e.model),
		Messages: messages,
	}
	if e.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(e.maxTokens))
	}
	if e.temperature > 0 {
		params.Temperature = openai.Float(e.temperature)
	}
	if tools := openaiTools(req.Catalog); len(tools) > 0 {
		params.Tools = tools
	}

	var response *openai.ChatCompletion
	err = retryCall(ctx, e.maxRetries, func(ctx context.Context) error {
		var callErr error
		response, callErr = e.client.Chat.Completions.New(ctx, params)
		return callErr
	})
	if err != nil {
		return PlanResponse{}, fmt.Errorf("openai plan failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return PlanResponse{}, fmt.Errorf("no response choices returned")
	}

	choice := response.Choices[0]
	plan := PlanResponse{Reply: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return PlanResponse{}, fmt.Errorf("failed to parse tool arguments: %w", err)
		}
		plan.ToolCalls = append(plan.ToolCalls, ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return plan, nil
}

// buildMessages lays out the system prompt, history, the current
// message, and any tool outcomes as an assistant turn carrying the tool
// calls followed by one tool message per result.
func (e *OpenAIEngine) buildMessages(req PlanRequest) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+4)

	if e.systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(e.systemPrompt))
	}
	for _, turn := range req.History {
		switch turn.Role {
		case "user":
			messages = append(messages, openai.UserMessage(turn.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.Message))

	if len(req.Outcomes) > 0 {
		toolCalls := make([]openai.ChatCompletionMessageToolCall, 0, len(req.Outcomes))
		for _, outcome := range req.Outcomes {
			argsJSON, err := json.Marshal(outcome.Call.Args)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool arguments: %w", err)
			}
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
				ID:   outcome.Call.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunction{
					Name:      outcome.Call.Name,
					Arguments: string(argsJSON),
				},
			})
		}
		assistantMsg := openai.ChatCompletionMessage{
			Role:      "assistant",
			ToolCalls: toolCalls,
		}
		messages = append(messages, assistantMsg.ToParam())

		for _, outcome := range req.Outcomes {
			content := outcome.Output
			if outcome.Error != "" {
				content = outcome.Error
			}
			messages = append(messages, openai.ToolMessage(content, outcome.Call.ID))
		}
	}

	return messages, nil
}

func openaiTools(catalog []CatalogTool) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(catalog))
	for _, tool := range catalog {
		schema := tool.InputSchema
		if schema == nil {
			schema = map[string]interface{}{"type": "object"}
		}
		tools = append(tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(schema),
			},
		})
	}
	return tools
}
