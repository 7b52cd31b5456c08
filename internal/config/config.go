package config

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Config is the root Miso configuration.
type Config struct {
	// Engine selects and tunes the reasoning engine.
	Engine EngineConfig `json:"engine" mapstructure:"engine"`

	// Remote describes the remote MCP tool server connection.
	Remote RemoteConfig `json:"remote" mapstructure:"remote"`

	// Tools tunes tool execution.
	Tools ToolsConfig `json:"tools" mapstructure:"tools"`

	// Telemetry sizes the execution log and exposes metrics.
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`

	// Logging configures the zerolog sinks.
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Tracing toggles OpenTelemetry spans.
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// DataDir holds conversation history and the default log file.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// EngineConfig configures the reasoning engine.
type EngineConfig struct {
	// Provider is one of: anthropic, openai, rule. Empty picks anthropic when
	// an API key is configured and the offline rule engine otherwise.
	Provider string `json:"provider" mapstructure:"provider"`

	// Model overrides the provider's default model.
	Model string `json:"model" mapstructure:"model"`

	// APIKey authenticates against the provider. Treated as opaque and never
	// logged.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	MaxTokens    int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature  float64 `json:"temperature" mapstructure:"temperature"`
	SystemPrompt string  `json:"system_prompt" mapstructure:"system_prompt"`

	// MaxRetries bounds retries on transient provider errors.
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
}

// RemoteConfig configures the remote MCP server link.
type RemoteConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Endpoint is the streamable HTTP URL of the server, without credentials.
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`

	// APIKey authenticates against the server. Treated as opaque, sent as a
	// request header, and never logged.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// Profile selects a server-side configuration profile.
	Profile string `json:"profile" mapstructure:"profile"`

	ConnectTimeoutSeconds    int `json:"connect_timeout_seconds" mapstructure:"connect_timeout_seconds"`
	MaxRetries               int `json:"max_retries" mapstructure:"max_retries"`
	CallTimeoutSeconds       int `json:"call_timeout_seconds" mapstructure:"call_timeout_seconds"`
	FailureThreshold         int `json:"failure_threshold" mapstructure:"failure_threshold"`
	ReconnectCooldownSeconds int `json:"reconnect_cooldown_seconds" mapstructure:"reconnect_cooldown_seconds"`

	// RetrySchedule is an optional cron spec (e.g. "@every 1m") that nudges a
	// degraded link. Empty disables scheduled retries.
	RetrySchedule string `json:"retry_schedule" mapstructure:"retry_schedule"`
}

// ToolsConfig tunes tool execution.
type ToolsConfig struct {
	// LocalTimeoutSeconds bounds each in-process tool call.
	LocalTimeoutSeconds int `json:"local_timeout_seconds" mapstructure:"local_timeout_seconds"`
}

// TelemetryConfig configures the execution log and metrics endpoint.
type TelemetryConfig struct {
	// ExecutionLogCapacity bounds the in-memory execution log ring.
	ExecutionLogCapacity int `json:"execution_log_capacity" mapstructure:"execution_log_capacity"`

	// MetricsAddr is the listen address for /metrics (e.g. ":9090"). Empty
	// disables the listener.
	MetricsAddr string `json:"metrics_addr" mapstructure:"metrics_addr"`
}

// TracingConfig configures OpenTelemetry.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Provider:    "",
			Model:       "",
			MaxTokens:   4096,
			Temperature: 0.7,
			MaxRetries:  3,
		},
		Remote: RemoteConfig{
			Enabled:                  true,
			ConnectTimeoutSeconds:    30,
			MaxRetries:               3,
			CallTimeoutSeconds:       30,
			FailureThreshold:         5,
			ReconnectCooldownSeconds: 300,
			RetrySchedule:            "",
		},
		Tools: ToolsConfig{
			LocalTimeoutSeconds: 10,
		},
		Telemetry: TelemetryConfig{
			ExecutionLogCapacity: 256,
			MetricsAddr:          "",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "miso",
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config with API keys masked.
func (c *Config) String() string {
	masked := *c
	if masked.Engine.APIKey != "" {
		masked.Engine.APIKey = "***"
	}
	if masked.Remote.APIKey != "" {
		masked.Remote.APIKey = "***"
	}
	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is usable, returning the first
// problem found. Validator.ValidateConfig reports all problems at once.
func (c *Config) Validate() error {
	switch c.Engine.Provider {
	case "", "rule":
	case "anthropic", "openai":
		if c.Engine.APIKey == "" {
			return fmt.Errorf("engine provider %s requires an api_key", c.Engine.Provider)
		}
	default:
		return fmt.Errorf("invalid engine provider: %s (must be: anthropic, openai, rule)", c.Engine.Provider)
	}

	if c.Remote.Enabled {
		if c.Remote.Endpoint == "" {
			return fmt.Errorf("remote endpoint is required when the remote link is enabled")
		}
		u, err := url.Parse(c.Remote.Endpoint)
		if err != nil {
			return fmt.Errorf("invalid remote endpoint: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid remote endpoint %q: scheme must be http or https", c.Remote.Endpoint)
		}
	}

	if c.Telemetry.ExecutionLogCapacity < 0 {
		return fmt.Errorf("telemetry execution_log_capacity must be >= 0")
	}

	knobs := []struct {
		name  string
		value int
	}{
		{"remote connect_timeout_seconds", c.Remote.ConnectTimeoutSeconds},
		{"remote max_retries", c.Remote.MaxRetries},
		{"remote call_timeout_seconds", c.Remote.CallTimeoutSeconds},
		{"remote failure_threshold", c.Remote.FailureThreshold},
		{"remote reconnect_cooldown_seconds", c.Remote.ReconnectCooldownSeconds},
		{"tools local_timeout_seconds", c.Tools.LocalTimeoutSeconds},
	}
	for _, knob := range knobs {
		if knob.value < 0 {
			return fmt.Errorf("%s must be >= 0", knob.name)
		}
	}

	return nil
}
