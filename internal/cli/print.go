package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/dajeong/miso/pkg/execlog"
	"github.com/dajeong/miso/pkg/orchestrator"
	"github.com/dajeong/miso/pkg/toolset"
)

func printCatalog(descs []*toolset.Descriptor) {
	if len(descs) == 0 {
		fmt.Println("No tools available.")
		return
	}
	local, remote := 0, 0
	for _, d := range descs {
		switch d.Origin {
		case toolset.OriginLocal:
			local++
		case toolset.OriginRemote:
			remote++
		}
	}
	fmt.Printf("Tools: %d (%d local, %d remote)\n\n", len(descs), local, remote)
	for _, d := range descs {
		fmt.Printf("  %-24s %-7s %s\n", d.Name, d.Origin, truncate(d.Description, 60))
	}
}

func printStatus(s orchestrator.Status) {
	fmt.Printf("Engine:        %s\n", s.Engine)
	fmt.Printf("Local tools:   %d\n", s.LocalTools)
	fmt.Printf("Remote tools:  %d\n", s.RemoteTools)
	fmt.Printf("Log records:   %d\n", s.LogSize)
	if s.Link == nil {
		fmt.Println("Remote link:   not configured")
		return
	}
	fmt.Printf("Remote link:   %s\n", s.Link.State)
	fmt.Printf("  Endpoint:    %s\n", s.Link.Endpoint)
	if s.Link.ConsecutiveFailures > 0 {
		fmt.Printf("  Failure streak: %d\n", s.Link.ConsecutiveFailures)
	}
	if s.Link.LastError != "" {
		fmt.Printf("  Last error:  %s\n", s.Link.LastError)
	}
	if !s.Link.DegradedSince.IsZero() {
		fmt.Printf("  Degraded for: %s\n", formatDuration(time.Since(s.Link.DegradedSince)))
	}
}

func printStats(stats execlog.Stats) {
	if stats.Total == 0 {
		fmt.Println("No tool invocations recorded yet.")
		return
	}
	fmt.Printf("Invocations:  %d (%d ok, %d failed)\n", stats.Total, stats.Successes, stats.Failures)
	fmt.Printf("Success rate: %.1f%%\n", stats.SuccessRate*100)
	fmt.Printf("Avg duration: %s\n", formatCallDuration(stats.AvgDuration))
	if len(stats.PerTool) == 0 {
		return
	}
	names := make([]string, 0, len(stats.PerTool))
	for name := range stats.PerTool {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("Per tool:")
	for _, name := range names {
		ts := stats.PerTool[name]
		fmt.Printf("  %-24s %d calls, %.1f%% success, avg %s\n",
			name, ts.Invocations, ts.SuccessRate*100, formatCallDuration(ts.AvgDuration))
	}
}

func printRecords(records []execlog.Record) {
	if len(records) == 0 {
		fmt.Println("No tool executions recorded yet.")
		return
	}
	for _, r := range records {
		fmt.Println(formatRecord(r))
	}
}

// formatRecord renders one execution record as a single line.
func formatRecord(r execlog.Record) string {
	outcome := "ok"
	if !r.Outcome.Succeeded() {
		outcome = fmt.Sprintf("%s: %s", r.Outcome.FailureKind, truncate(r.Outcome.Message, 60))
	}
	return fmt.Sprintf("  %s  %-24s %-7s %-8s %s",
		r.Start.Format("15:04:05"), r.Tool, r.Origin, formatCallDuration(r.Duration), outcome)
}

// formatCallDuration renders call durations at millisecond grain.
func formatCallDuration(d time.Duration) string {
	if d <= 0 {
		return "0ms"
	}
	if d < time.Millisecond {
		return "<1ms"
	}
	return d.Round(time.Millisecond).String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
