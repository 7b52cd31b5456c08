package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateProvider validates an engine provider name
func (v *Validator) ValidateProvider(provider string) error {
	if provider == "" {
		return nil // Empty picks by API key presence
	}

	validProviders := []string{"anthropic", "openai", "rule"}
	for _, valid := range validProviders {
		if provider == valid {
			return nil
		}
	}

	return fmt.Errorf("invalid engine provider: %s (must be one of: %s)", provider, strings.Join(validProviders, ", "))
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateEndpoint validates a remote MCP endpoint URL. The endpoint must be
// credential-free; the API key travels as a request header, never in the URL.
func (v *Validator) ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("remote endpoint cannot be empty")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid remote endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid remote endpoint %q: scheme must be http or https", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid remote endpoint %q: missing host", endpoint)
	}
	if u.User != nil {
		return fmt.Errorf("remote endpoint must not embed credentials; set remote.api_key instead")
	}
	for key := range u.Query() {
		lowered := strings.ToLower(key)
		if lowered == "api_key" || lowered == "apikey" || lowered == "token" {
			return fmt.Errorf("remote endpoint must not embed credentials in query parameters; set remote.api_key instead")
		}
	}

	return nil
}

// ValidateRetrySchedule validates a cron spec for scheduled reconnects
func (v *Validator) ValidateRetrySchedule(spec string) error {
	if spec == "" {
		return nil // Scheduled retries disabled
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid retry schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation, collecting every problem
// instead of stopping at the first.
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateProvider(cfg.Engine.Provider); err != nil {
		errors = append(errors, err)
	}

	switch cfg.Engine.Provider {
	case "anthropic", "openai":
		if err := v.ValidateAPIKey(cfg.Engine.APIKey, cfg.Engine.Provider); err != nil {
			errors = append(errors, fmt.Errorf("engine: %w", err))
		}
	}

	if cfg.Engine.Temperature != 0 {
		if err := v.ValidateTemperature(cfg.Engine.Temperature); err != nil {
			errors = append(errors, fmt.Errorf("engine: %w", err))
		}
	}
	if cfg.Engine.MaxTokens != 0 {
		if err := v.ValidateMaxTokens(cfg.Engine.MaxTokens); err != nil {
			errors = append(errors, fmt.Errorf("engine: %w", err))
		}
	}

	if cfg.Remote.Enabled {
		if err := v.ValidateEndpoint(cfg.Remote.Endpoint); err != nil {
			errors = append(errors, err)
		}
	}
	if err := v.ValidateRetrySchedule(cfg.Remote.RetrySchedule); err != nil {
		errors = append(errors, err)
	}

	remoteKnobs := []struct {
		name  string
		value int
	}{
		{"remote.connect_timeout_seconds", cfg.Remote.ConnectTimeoutSeconds},
		{"remote.max_retries", cfg.Remote.MaxRetries},
		{"remote.call_timeout_seconds", cfg.Remote.CallTimeoutSeconds},
		{"remote.failure_threshold", cfg.Remote.FailureThreshold},
		{"remote.reconnect_cooldown_seconds", cfg.Remote.ReconnectCooldownSeconds},
		{"tools.local_timeout_seconds", cfg.Tools.LocalTimeoutSeconds},
	}
	for _, knob := range remoteKnobs {
		if knob.value < 0 {
			errors = append(errors, fmt.Errorf("%s must be >= 0", knob.name))
		}
	}

	if cfg.Telemetry.ExecutionLogCapacity < 0 {
		errors = append(errors, fmt.Errorf("telemetry.execution_log_capacity must be >= 0"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
