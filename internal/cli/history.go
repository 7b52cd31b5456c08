package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dajeong/miso/pkg/history"
	"github.com/spf13/cobra"
)

var historyPruneAge time.Duration

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage saved conversations",
	Long:  `List, inspect, and remove conversations saved by miso chat.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <conversation>",
	Short: "Print a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear <conversation>",
	Short: "Delete a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryClear,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete conversations idle longer than --older-than",
	RunE:  runHistoryPrune,
}

func init() {
	historyPruneCmd.Flags().DurationVar(&historyPruneAge, "older-than", 30*24*time.Hour, "delete conversations idle longer than this")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistoryStore() (*history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return history.New(filepath.Join(cfg.DataDir, "conversations"))
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	keys, err := store.List()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("No saved conversations.")
		return nil
	}

	ctx := context.Background()
	fmt.Printf("%-24s %6s  %s\n", "CONVERSATION", "TURNS", "LAST ACTIVE")
	for _, key := range keys {
		info, err := store.Stat(ctx, key)
		if err != nil {
			fmt.Printf("%-24s %6s  %v\n", key, "?", err)
			continue
		}
		fmt.Printf("%-24s %6d  %s\n", key, info.Turns, info.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	turns, err := store.Load(context.Background(), args[0])
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		fmt.Printf("Conversation %q is empty.\n", args[0])
		return nil
	}
	for _, turn := range turns {
		fmt.Println(formatTurn(turn))
	}
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Conversation %q cleared.\n", args[0])
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.Prune(context.Background(), historyPruneAge)
	if err != nil {
		return err
	}
	switch removed {
	case 0:
		fmt.Println("Nothing to prune.")
	case 1:
		fmt.Println("Removed 1 conversation.")
	default:
		fmt.Printf("Removed %d conversations.\n", removed)
	}
	return nil
}

// formatTurn renders one saved turn as a transcript line.
func formatTurn(turn history.Turn) string {
	prefix := turn.Role
	switch turn.Role {
	case "user":
		prefix = "you"
	case "assistant":
		prefix = "miso"
	}
	line := fmt.Sprintf("%s> %s", prefix, turn.Content)
	if len(turn.ToolsUsed) > 0 {
		line += fmt.Sprintf("  [tools: %s]", strings.Join(turn.ToolsUsed, ", "))
	}
	return line
}
