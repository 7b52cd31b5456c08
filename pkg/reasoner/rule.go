package reasoner

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dajeong/miso/pkg/coretools"
)

// RuleEngine plans with keyword and pattern matching. It needs no API
// key and keeps the assistant useful when no model provider is
// configured or reachable.
type RuleEngine struct{}

// NewRuleEngine builds the deterministic fallback engine.
func NewRuleEngine() *RuleEngine { return &RuleEngine{} }

func (e *RuleEngine) Name() string { return "rule" }

// Plan selects tools for a fresh message, or composes a reply once
// outcomes are in.
func (e *RuleEngine) Plan(_ context.Context, req PlanRequest) (PlanResponse, error) {
	if len(req.Outcomes) > 0 {
		return PlanResponse{Reply: composeReply(req.Outcomes)}, nil
	}

	calls := selectTools(req)
	if len(calls) == 0 {
		return PlanResponse{Reply: fallbackReply(req.Catalog)}, nil
	}
	return PlanResponse{ToolCalls: calls}, nil
}

var dateKeywords = []string{"date", "today"}

// remoteKeywords route workspace-sounding requests to the remote search
// tool when one is advertised.
var remoteKeywords = []string{"notion", "note", "memo", "document", "page"}

const numberPattern = `(\d+(?:\.\d+)?)`

var arithmeticPatterns = []struct {
	tool string
	re   *regexp.Regexp
}{
	{"add", regexp.MustCompile(numberPattern + `\s*\+\s*` + numberPattern)},
	{"add", regexp.MustCompile(numberPattern + `\s+plus\s+` + numberPattern)},
	{"subtract", regexp.MustCompile(numberPattern + `\s*-\s*` + numberPattern)},
	{"subtract", regexp.MustCompile(numberPattern + `\s+minus\s+` + numberPattern)},
	{"multiply", regexp.MustCompile(numberPattern + `\s*[*×]\s*` + numberPattern)},
	{"multiply", regexp.MustCompile(numberPattern + `\s+times\s+` + numberPattern)},
	{"divide", regexp.MustCompile(numberPattern + `\s*[/÷]\s*` + numberPattern)},
	{"divide", regexp.MustCompile(numberPattern + `\s+divided\s+by\s+` + numberPattern)},
}

// selectTools matches the message against date keywords, arithmetic
// expressions, and remote-search keywords. Only tools present in the
// catalog are ever requested.
func selectTools(req PlanRequest) []ToolCall {
	message := strings.ToLower(strings.TrimSpace(req.Message))
	var calls []ToolCall

	nextID := func() string { return fmt.Sprintf("call_%d", len(calls)+1) }

	if containsAny(message, dateKeywords) && hasCatalogTool(req.Catalog, "current_date") {
		calls = append(calls, ToolCall{
			ID:   nextID(),
			Name: "current_date",
			Args: map[string]interface{}{},
		})
	}

	for _, pattern := range arithmeticPatterns {
		if !hasCatalogTool(req.Catalog, pattern.tool) {
			continue
		}
		for _, match := range pattern.re.FindAllStringSubmatch(message, -1) {
			a, errA := strconv.ParseFloat(match[1], 64)
			b, errB := strconv.ParseFloat(match[2], 64)
			if errA != nil || errB != nil {
				continue
			}
			calls = append(calls, ToolCall{
				ID:   nextID(),
				Name: pattern.tool,
				Args: map[string]interface{}{"a": a, "b": b},
			})
		}
	}

	if containsAny(message, remoteKeywords) && hasCatalogTool(req.Catalog, "search") {
		calls = append(calls, ToolCall{
			ID:   nextID(),
			Name: "search",
			Args: map[string]interface{}{"query": req.Message},
		})
	}

	return calls
}

var operationSymbols = map[string]string{
	"add":      "+",
	"subtract": "-",
	"multiply": "×",
	"divide":   "÷",
}

// composeReply turns tool outcomes into a readable answer: a bare
// sentence for a single result, a numbered list for several, and an
// error section for anything that failed.
func composeReply(outcomes []ToolOutcome) string {
	var successes, failures []ToolOutcome
	for _, outcome := range outcomes {
		if outcome.Error == "" {
			successes = append(successes, outcome)
		} else {
			failures = append(failures, outcome)
		}
	}

	var lines []string

	switch {
	case len(successes) == 1:
		lines = append(lines, describeOutcome(successes[0]))
	case len(successes) > 1:
		lines = append(lines, "Here are the results of your requests:")
		for i, outcome := range successes {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, describeOutcome(outcome)))
		}
	}

	if len(failures) > 0 {
		if len(successes) > 0 {
			lines = append(lines, "", "Some requests ran into errors:")
		} else {
			lines = append(lines, "I ran into errors handling your request:")
		}
		for _, outcome := range failures {
			lines = append(lines, fmt.Sprintf("- %s: %s", outcome.Call.Name, outcome.Error))
		}
	}

	if len(lines) == 0 {
		return "I had nothing to run for that request."
	}
	return strings.Join(lines, "\n")
}

func describeOutcome(outcome ToolOutcome) string {
	name := outcome.Call.Name
	if name == "current_date" {
		return fmt.Sprintf("Today's date is %s.", outcome.Output)
	}
	if symbol, ok := operationSymbols[name]; ok {
		a := formatArg(outcome.Call.Args["a"])
		b := formatArg(outcome.Call.Args["b"])
		return fmt.Sprintf("%s %s %s = %s", a, symbol, b, outcome.Output)
	}
	return fmt.Sprintf("%s: %s", name, outcome.Output)
}

func formatArg(value interface{}) string {
	if f, ok := value.(float64); ok {
		return coretools.FormatNumber(f)
	}
	return fmt.Sprintf("%v", value)
}

// fallbackReply answers a message no tool matched. The hint adjusts to
// what the catalog actually offers so the user is not pointed at search
// while the remote side is down.
func fallbackReply(catalog []CatalogTool) string {
	if hasCatalogTool(catalog, "search") {
		return "I could not find a suitable tool for that request. " +
			"I can tell you today's date, do arithmetic like \"15 + 25\", or search your workspace, for example \"find my meeting notes\"."
	}
	return "I could not find a suitable tool for that request. " +
		"Remote tools are unavailable right now, but I can still tell you today's date or do arithmetic like \"15 + 25\"."
}

func hasCatalogTool(catalog []CatalogTool, name string) bool {
	for _, tool := range catalog {
		if tool.Name == name {
			return true
		}
	}
	return false
}

func containsAny(message string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	return false
}
