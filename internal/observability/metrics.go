package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// linkStates enumerates the remote link states exported as a 0/1 state set.
var linkStates = []string{"disconnected", "connecting", "healthy", "degraded"}

type moduleMetrics struct {
	toolInvocationTotal    *prometheus.CounterVec
	toolInvocationDuration *prometheus.HistogramVec
	toolFailuresTotal      *prometheus.CounterVec

	linkState           *prometheus.GaugeVec
	linkReconnectsTotal *prometheus.CounterVec
	linkFailureStreak   prometheus.Gauge
	catalogTools        *prometheus.GaugeVec

	planTotal    *prometheus.CounterVec
	planDuration *prometheus.HistogramVec

	executionLogSize prometheus.Gauge

	activeConversations prometheus.Gauge
	historyOpDuration   *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			toolInvocationTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_invocation_total",
					Help: "Total tool invocations by tool, origin, and outcome.",
				},
				[]string{"tool", "origin", "outcome"},
			),
			toolInvocationDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_invocation_duration_seconds",
					Help:    "Tool invocation duration in seconds by tool and origin.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool", "origin"},
			),
			toolFailuresTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_failures_total",
					Help: "Total failed tool invocations by tool and failure kind.",
				},
				[]string{"tool", "kind"},
			),
			linkState: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "remote_link_state",
					Help: "Remote link state as a 0/1 set (1 on the current state).",
				},
				[]string{"state"},
			),
			linkReconnectsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "remote_link_reconnects_total",
					Help: "Total remote link connection attempts by result.",
				},
				[]string{"result"},
			),
			linkFailureStreak: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "remote_link_consecutive_failures",
					Help: "Consecutive remote call failures since the last success.",
				},
			),
			catalogTools: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "catalog_tools",
					Help: "Tools in the merged catalog by origin.",
				},
				[]string{"origin"},
			),
			planTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "plan_total",
					Help: "Total reasoning engine plans by engine and status.",
				},
				[]string{"engine", "status"},
			),
			planDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "plan_duration_seconds",
					Help:    "Reasoning engine plan duration in seconds by engine.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"engine"},
			),
			executionLogSize: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "execution_log_records",
					Help: "Execution records currently retained.",
				},
			),
			activeConversations: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "conversations_active",
					Help: "Conversation history files currently on disk.",
				},
			),
			historyOpDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "history_operation_duration_seconds",
					Help:    "Conversation history operation duration in seconds by operation.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"operation"},
			),
		}

		prometheus.MustRegister(
			m.toolInvocationTotal,
			m.toolInvocationDuration,
			m.toolFailuresTotal,
			m.linkState,
			m.linkReconnectsTotal,
			m.linkFailureStreak,
			m.catalogTools,
			m.planTotal,
			m.planDuration,
			m.executionLogSize,
			m.activeConversations,
			m.historyOpDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordToolInvocation(tool, origin, outcome string, duration time.Duration) {
	m := getMetrics()
	m.toolInvocationTotal.WithLabelValues(tool, origin, outcome).Inc()
	m.toolInvocationDuration.WithLabelValues(tool, origin).Observe(duration.Seconds())
	if outcome != "success" {
		m.toolFailuresTotal.WithLabelValues(tool, outcome).Inc()
	}
}

func SetLinkState(state string) {
	m := getMetrics()
	for _, s := range linkStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		m.linkState.WithLabelValues(s).Set(value)
	}
}

func RecordLinkReconnect(success bool) {
	m := getMetrics()
	result := "failure"
	if success {
		result = "success"
	}
	m.linkReconnectsTotal.WithLabelValues(result).Inc()
}

func SetLinkFailureStreak(count int) {
	m := getMetrics()
	m.linkFailureStreak.Set(float64(count))
}

func SetCatalogSize(origin string, count int) {
	m := getMetrics()
	m.catalogTools.WithLabelValues(origin).Set(float64(count))
}

func RecordPlan(engine string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.planTotal.WithLabelValues(engine, status).Inc()
	m.planDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

func SetExecutionLogSize(size int) {
	m := getMetrics()
	m.executionLogSize.Set(float64(size))
}

func SetActiveConversations(count int) {
	m := getMetrics()
	m.activeConversations.Set(float64(count))
}

func RecordHistorySave(duration time.Duration) {
	m := getMetrics()
	m.historyOpDuration.WithLabelValues("save").Observe(duration.Seconds())
}

func RecordHistoryLoad(duration time.Duration) {
	m := getMetrics()
	m.historyOpDuration.WithLabelValues("load").Observe(duration.Seconds())
}
