package reasoner

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	defaultMaxTokens  = 4096
	defaultMaxRetries = 3
)

const defaultSystemPrompt = "You are Miso, a helpful assistant with access to tools. " +
	"Use the available tools when they help answer the user, and answer directly when they do not. " +
	"When a tool fails, say so honestly instead of inventing a result."

// EngineConfig selects and tunes a reasoning engine. APIKey is treated
// as opaque and never logged.
type EngineConfig struct {
	Provider     string // "anthropic", "openai", or "rule"
	Model        string
	APIKey       string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
	MaxRetries   int
}

// New builds the engine named by cfg.Provider. An empty provider picks
// the Anthropic engine when an API key is present and the rule engine
// otherwise, so the assistant always has something to plan with.
func New(cfg EngineConfig) (Engine, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		if cfg.APIKey == "" {
			provider = "rule"
		} else {
			provider = "anthropic"
		}
	}

	switch provider {
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic engine requires an API key")
		}
		log.Info().Str("provider", provider).Str("model", cfg.Model).Msg("Initializing reasoning engine")
		return NewAnthropicEngine(cfg), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai engine requires an API key")
		}
		log.Info().Str("provider", provider).Str("model", cfg.Model).Msg("Initializing reasoning engine")
		return NewOpenAIEngine(cfg), nil
	case "rule":
		log.Info().Str("provider", provider).Msg("Initializing reasoning engine")
		return NewRuleEngine(), nil
	default:
		return nil, fmt.Errorf("unsupported engine provider: %s", cfg.Provider)
	}
}
