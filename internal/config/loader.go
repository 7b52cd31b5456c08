package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the configuration from file and environment. Environment
// variables use the MISO_ prefix with underscores for nesting, e.g.
// MISO_ENGINE_API_KEY overrides engine.api_key. A missing config file is not
// an error; defaults and environment still apply.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to determine config path")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("MISO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default registered for AutomaticEnv to surface
	// env-only overrides through Unmarshal.
	setDefaults(v)

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set data directory if not specified
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".miso")
	}

	// Set logging file path if not specified
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "miso.log")
	}

	return cfg, nil
}

// Save writes the configuration to file. The file holds API keys, so it is
// chmodded to 0600.
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to determine config path")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("engine", cfg.Engine)
	v.Set("remote", cfg.Remote)
	v.Set("tools", cfg.Tools)
	v.Set("telemetry", cfg.Telemetry)
	v.Set("logging", cfg.Logging)
	v.Set("tracing", cfg.Tracing)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	if err := os.Chmod(configPath, 0600); err != nil {
		return fmt.Errorf("failed to restrict config file permissions: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".miso", "miso.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("engine.provider", def.Engine.Provider)
	v.SetDefault("engine.model", def.Engine.Model)
	v.SetDefault("engine.api_key", def.Engine.APIKey)
	v.SetDefault("engine.max_tokens", def.Engine.MaxTokens)
	v.SetDefault("engine.temperature", def.Engine.Temperature)
	v.SetDefault("engine.system_prompt", def.Engine.SystemPrompt)
	v.SetDefault("engine.max_retries", def.Engine.MaxRetries)

	v.SetDefault("remote.enabled", def.Remote.Enabled)
	v.SetDefault("remote.endpoint", def.Remote.Endpoint)
	v.SetDefault("remote.api_key", def.Remote.APIKey)
	v.SetDefault("remote.profile", def.Remote.Profile)
	v.SetDefault("remote.connect_timeout_seconds", def.Remote.ConnectTimeoutSeconds)
	v.SetDefault("remote.max_retries", def.Remote.MaxRetries)
	v.SetDefault("remote.call_timeout_seconds", def.Remote.CallTimeoutSeconds)
	v.SetDefault("remote.failure_threshold", def.Remote.FailureThreshold)
	v.SetDefault("remote.reconnect_cooldown_seconds", def.Remote.ReconnectCooldownSeconds)
	v.SetDefault("remote.retry_schedule", def.Remote.RetrySchedule)

	v.SetDefault("tools.local_timeout_seconds", def.Tools.LocalTimeoutSeconds)

	v.SetDefault("telemetry.execution_log_capacity", def.Telemetry.ExecutionLogCapacity)
	v.SetDefault("telemetry.metrics_addr", def.Telemetry.MetricsAddr)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.file", def.Logging.File)
	v.SetDefault("logging.console", def.Logging.Console)
	v.SetDefault("logging.pretty", def.Logging.Pretty)
	v.SetDefault("logging.max_size", def.Logging.MaxSize)
	v.SetDefault("logging.max_age", def.Logging.MaxAge)
	v.SetDefault("logging.compress", def.Logging.Compress)
	v.SetDefault("logging.redaction", def.Logging.Redaction)

	v.SetDefault("tracing.enabled", def.Tracing.Enabled)
	v.SetDefault("tracing.service_name", def.Tracing.ServiceName)

	v.SetDefault("data_dir", def.DataDir)
}
