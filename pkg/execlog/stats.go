package execlog

import "time"

// ToolStats aggregates outcomes for a single tool.
type ToolStats struct {
	Invocations  int                 `json:"invocations"`
	Successes    int                 `json:"successes"`
	Failures     int                 `json:"failures"`
	SuccessRate  float64             `json:"success_rate"`
	AvgDuration  time.Duration       `json:"avg_duration"`
	FailureKinds map[FailureKind]int `json:"failure_kinds,omitempty"`
}

// Stats aggregates outcomes across the retained log.
type Stats struct {
	Total       int                  `json:"total"`
	Successes   int                  `json:"successes"`
	Failures    int                  `json:"failures"`
	SuccessRate float64              `json:"success_rate"`
	AvgDuration time.Duration        `json:"avg_duration"`
	PerTool     map[string]ToolStats `json:"per_tool,omitempty"`
}

// Stats computes usage statistics over the retained records: per-tool
// counts, success rates, average durations, and a failure-kind summary.
func (l *Log) Stats() Stats {
	records := l.Snapshot()

	stats := Stats{PerTool: make(map[string]ToolStats)}
	if len(records) == 0 {
		return stats
	}

	totalDuration := time.Duration(0)
	perToolDuration := make(map[string]time.Duration)

	for _, rec := range records {
		stats.Total++
		totalDuration += rec.Duration

		ts := stats.PerTool[rec.Tool]
		ts.Invocations++
		perToolDuration[rec.Tool] += rec.Duration

		if rec.Outcome.Succeeded() {
			stats.Successes++
			ts.Successes++
		} else {
			stats.Failures++
			ts.Failures++
			if ts.FailureKinds == nil {
				ts.FailureKinds = make(map[FailureKind]int)
			}
			ts.FailureKinds[rec.Outcome.FailureKind]++
		}
		stats.PerTool[rec.Tool] = ts
	}

	stats.SuccessRate = float64(stats.Successes) / float64(stats.Total)
	stats.AvgDuration = totalDuration / time.Duration(stats.Total)

	for tool, ts := range stats.PerTool {
		ts.SuccessRate = float64(ts.Successes) / float64(ts.Invocations)
		ts.AvgDuration = perToolDuration[tool] / time.Duration(ts.Invocations)
		stats.PerTool[tool] = ts
	}

	return stats
}
