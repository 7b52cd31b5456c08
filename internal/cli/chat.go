package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dajeong/miso/internal/config"
	"github.com/dajeong/miso/internal/observability"
	"github.com/dajeong/miso/internal/tracing"
	"github.com/dajeong/miso/pkg/execlog"
	"github.com/dajeong/miso/pkg/history"
	"github.com/dajeong/miso/pkg/mcplink"
	"github.com/dajeong/miso/pkg/orchestrator"
	"github.com/dajeong/miso/pkg/reasoner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	// historyWindow is how many prior turns are replayed to the engine.
	historyWindow = 20
	// defaultLogLines is the default count for the /log command.
	defaultLogLines = 10
)

var (
	chatConversation string
	chatEngine       string
	chatNoRemote     bool
	chatTrace        bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session with the assistant.
Messages are answered by the configured reasoning engine, which may call
local tools and tools from the remote MCP server. Conversations persist
across sessions under the configured data directory.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatConversation, "conversation", "default", "conversation to resume or start")
	chatCmd.Flags().StringVar(&chatEngine, "engine", "", "override the reasoning engine (anthropic, openai, rule)")
	chatCmd.Flags().BoolVar(&chatNoRemote, "no-remote", false, "skip the remote tool server entirely")
	chatCmd.Flags().BoolVar(&chatTrace, "trace", false, "print tool execution records after each reply")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if chatEngine != "" {
		cfg.Engine.Provider = chatEngine
	}
	if chatNoRemote {
		cfg.Remote.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = tracing.WithConversationID(ctx, chatConversation)

	store, err := history.New(filepath.Join(cfg.DataDir, "conversations"))
	if err != nil {
		log.Warn().Err(err).Msg("Conversation persistence disabled")
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	if a.link != nil {
		fmt.Println("Connecting to remote tool server...")
	}
	a.connectRemote(ctx)

	if watcher := watchConfigChanges(a, cfg); watcher != nil {
		defer watcher.Stop()
	}

	sess := &chatSession{orch: a.orch, store: store, key: chatConversation}
	if store != nil {
		if turns, err := store.Recent(ctx, chatConversation, historyWindow); err == nil {
			sess.window = historyToTurns(turns)
		}
	}

	printBanner(a, len(sess.window))
	return sess.loop(ctx)
}

// chatSession holds the REPL state: the orchestrator, the persisted
// conversation, and the in-memory turn window replayed to the engine.
type chatSession struct {
	orch   *orchestrator.Orchestrator
	store  *history.Store
	key    string
	window []reasoner.Turn
}

func (c *chatSession) loop(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := c.command(ctx, line); quit {
				return nil
			}
			continue
		}
		if err := c.handle(ctx, line); err != nil {
			if ctx.Err() != nil {
				fmt.Println("\nInterrupted.")
				return nil
			}
			return err
		}
	}
}

// command dispatches a slash command and reports whether the session
// should end.
func (c *chatSession) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return true
	case "/help":
		printChatHelp()
	case "/tools":
		printCatalog(c.orch.Catalog())
	case "/status":
		printStatus(c.orch.Status())
	case "/stats":
		printStats(c.orch.Stats())
	case "/log":
		n := defaultLogLines
		if len(fields) > 1 {
			if v, err := strconv.Atoi(fields[1]); err == nil && v > 0 {
				n = v
			}
		}
		printRecords(c.orch.Records(n))
	case "/retry":
		fmt.Println("Reconnecting to remote tool server...")
		if err := c.orch.RetryRemote(ctx); err != nil {
			fmt.Printf("Reconnect failed: %v\n", err)
		} else {
			fmt.Println("Reconnected.")
		}
	case "/clear":
		c.clear(ctx)
	default:
		fmt.Printf("Unknown command %q. Type /help for commands.\n", fields[0])
	}
	return false
}

func (c *chatSession) handle(ctx context.Context, line string) error {
	result, err := c.orch.Process(ctx, line, c.window)
	if err != nil {
		return err
	}
	fmt.Printf("\nmiso> %s\n\n", result.Reply)
	if chatTrace && len(result.Records) > 0 {
		printRecords(result.Records)
	}
	c.remember(line, result)
	return nil
}

// remember extends the turn window and persists both turns. Persistence
// uses a fresh context so the turns survive session teardown.
func (c *chatSession) remember(message string, result orchestrator.Result) {
	c.window = append(c.window,
		reasoner.Turn{Role: "user", Content: message},
		reasoner.Turn{Role: "assistant", Content: result.Reply},
	)
	c.window = trimWindow(c.window, historyWindow)

	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.Append(ctx, c.key, history.Turn{Role: "user", Content: message}); err != nil {
		log.Warn().Err(err).Msg("Failed to persist user turn")
		return
	}
	turn := history.Turn{Role: "assistant", Content: result.Reply, ToolsUsed: toolsUsed(result.Records)}
	if err := c.store.Append(ctx, c.key, turn); err != nil {
		log.Warn().Err(err).Msg("Failed to persist assistant turn")
	}
}

func (c *chatSession) clear(ctx context.Context) {
	c.window = nil
	if c.store != nil {
		if err := c.store.Delete(ctx, c.key); err != nil {
			fmt.Printf("Could not clear saved conversation: %v\n", err)
			return
		}
	}
	fmt.Println("Conversation cleared.")
}

func printBanner(a *app, resumedTurns int) {
	status := a.orch.Status()
	fmt.Printf("Miso %s (engine: %s)\n", version, status.Engine)
	fmt.Printf("Tools: %d local, %d remote\n", status.LocalTools, status.RemoteTools)
	if a.link != nil && a.link.State() != mcplink.StateHealthy {
		fmt.Println("Remote tool server unavailable; only local tools are active.")
	}
	if resumedTurns > 0 {
		fmt.Printf("Resumed conversation %q (%d turns).\n", chatConversation, resumedTurns)
	}
	fmt.Println("Type a message, or /help for commands.")
	fmt.Println()
}

func printChatHelp() {
	fmt.Print(`Commands:
  /tools       list the available tools
  /status      show engine and remote link status
  /stats       show tool usage statistics
  /log [n]     show the n most recent tool executions (default 10)
  /retry       force a remote server reconnect
  /clear       clear this conversation
  /exit        leave the chat
`)
}

// watchConfigChanges reloads the config file on edit and nudges the
// remote link when its settings change, so a fixed server address or a
// recovered server is picked up without restarting the session. Endpoint
// and credential changes still need a restart; the link is built once.
func watchConfigChanges(a *app, initial *config.Config) *config.Watcher {
	prev := initial
	watcher, err := config.NewWatcher(config.NewLoader(cfgFile), func(next *config.Config) {
		observability.RecordConfigAudit(context.Background(), "reload", "watcher", map[string]interface{}{
			"remote_changed": next.Remote != prev.Remote,
		})
		if a.link != nil && next.Remote != prev.Remote {
			if next.Remote.Endpoint != prev.Remote.Endpoint || next.Remote.APIKey != prev.Remote.APIKey {
				log.Warn().Msg("Remote endpoint or credential changed; restart to apply")
			} else {
				log.Info().Msg("Remote settings changed, triggering reconnect")
				a.link.Nudge()
			}
		}
		prev = next
	})
	if err != nil {
		log.Warn().Err(err).Msg("Config watching disabled")
		return nil
	}
	if err := watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Config watching disabled")
		return nil
	}
	return watcher
}

// historyToTurns converts persisted turns into the engine's history form.
func historyToTurns(turns []history.Turn) []reasoner.Turn {
	out := make([]reasoner.Turn, 0, len(turns))
	for _, t := range turns {
		out = append(out, reasoner.Turn{Role: t.Role, Content: t.Content})
	}
	return out
}

// trimWindow keeps the most recent max turns.
func trimWindow(turns []reasoner.Turn, max int) []reasoner.Turn {
	if len(turns) <= max {
		return turns
	}
	return turns[len(turns)-max:]
}

// toolsUsed extracts the distinct tool names from a set of execution
// records, in first-use order.
func toolsUsed(records []execlog.Record) []string {
	if len(records) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(records))
	var names []string
	for _, r := range records {
		if !seen[r.Tool] {
			seen[r.Tool] = true
			names = append(names, r.Tool)
		}
	}
	return names
}
