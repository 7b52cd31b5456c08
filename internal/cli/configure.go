package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dajeong/miso/internal/config"
	"github.com/dajeong/miso/internal/observability"
	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Run interactive configuration wizard",
	Long: `Run an interactive configuration wizard to set up Miso.
The wizard will guide you through configuring the reasoning engine, the
remote tool server, and logging.`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	// Create wizard
	wizard := config.NewWizard()

	// Run wizard
	cfg, err := wizard.Run()
	if err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Save configuration
	loader := config.NewLoader(cfgFile)
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	configPath := loader.GetConfigPath()
	if err := observability.InitAuditLogger(filepath.Join(cfg.DataDir, "audit.log")); err == nil {
		observability.RecordConfigAudit(context.Background(), "save", "wizard", map[string]interface{}{
			"path": configPath,
		})
		_ = observability.GetAuditLogger().Close()
	}

	fmt.Printf("\nConfiguration saved to: %s\n", configPath)
	fmt.Println("\nYou can now chat with: miso chat")

	return nil
}
