package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	toolsJSON      bool
	toolsLocalOnly bool
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the available tools",
	Long: `List the merged tool catalog: built-in local tools plus the tools
advertised by the remote MCP server. With --local-only the remote server
is not contacted.`,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "print the catalog as JSON")
	toolsCmd.Flags().BoolVar(&toolsLocalOnly, "local-only", false, "skip the remote tool server")
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Listing the catalog does not plan anything, so the rule engine
	// suffices and no API key is needed.
	cfg.Engine.Provider = "rule"
	cfg.Logging.Console = false
	if toolsLocalOnly {
		cfg.Remote.Enabled = false
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.connectRemote(ctx)

	catalog := a.orch.Catalog()
	if toolsJSON {
		data, err := json.MarshalIndent(catalog, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode catalog: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printCatalog(catalog)
	return nil
}
