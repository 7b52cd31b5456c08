package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
}

// NewWizard creates a new configuration wizard
func NewWizard() *Wizard {
	return &Wizard{
		reader: bufio.NewReader(os.Stdin),
	}
}

// Run runs the interactive configuration wizard
func (w *Wizard) Run() (*Config, error) {
	fmt.Println("=== Miso Configuration Wizard ===")
	fmt.Println()

	cfg := DefaultConfig()
	validator := NewValidator()

	// Reasoning engine
	fmt.Println("Reasoning engine:")
	fmt.Println("  anthropic - Claude models (requires API key)")
	fmt.Println("  openai    - GPT models (requires API key)")
	fmt.Println("  rule      - offline pattern matching, no API key")
	for {
		fmt.Print("Provider [anthropic]: ")
		provider, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if provider == "" {
			provider = "anthropic"
		}

		if err := validator.ValidateProvider(provider); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		cfg.Engine.Provider = provider
		break
	}

	if cfg.Engine.Provider == "anthropic" || cfg.Engine.Provider == "openai" {
		label := "Anthropic"
		if cfg.Engine.Provider == "openai" {
			label = "OpenAI"
		}
		for {
			fmt.Printf("%s API key: ", label)
			key, err := w.readLine()
			if err != nil {
				return nil, err
			}

			if err := validator.ValidateAPIKey(key, cfg.Engine.Provider); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}

			cfg.Engine.APIKey = key
			break
		}
	}

	fmt.Println()

	// Remote tool server
	fmt.Println("Remote tool server (MCP):")
	fmt.Print("Enable remote tools? (y/n) [y]: ")
	enable, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if enable == "" || strings.ToLower(enable) == "y" {
		cfg.Remote.Enabled = true

		for {
			fmt.Print("Server URL (https://...): ")
			endpoint, err := w.readLine()
			if err != nil {
				return nil, err
			}

			if err := validator.ValidateEndpoint(endpoint); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}

			cfg.Remote.Endpoint = endpoint
			break
		}

		fmt.Print("Server API key (press Enter to skip): ")
		key, err := w.readLine()
		if err != nil {
			return nil, err
		}
		cfg.Remote.APIKey = key

		fmt.Print("Server profile (press Enter to skip): ")
		profile, err := w.readLine()
		if err != nil {
			return nil, err
		}
		cfg.Remote.Profile = profile
	} else {
		cfg.Remote.Enabled = false
	}

	fmt.Println()

	// Log Level
	fmt.Println("Logging:")
	fmt.Print("Log level (debug/info/warn/error) [info]: ")
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Printf("Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Println()
	fmt.Println("Configuration complete!")

	return cfg, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
