package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SQL agent metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "sql_agent",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "sql_agent",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"method", "endpoint"},
	)

	// Run outcomes
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "sql_agent",
			Name:      "runs_total",
			Help:      "Total graph runs by terminal status",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "sql_agent",
			Name:      "run_duration_seconds",
			Help:      "Graph run duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	RunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jan",
			Subsystem: "sql_agent",
			Name:      "runs_in_flight",
			Help:      "Graph runs currently executing",
		},
	)

	// Node executions
	NodeExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "sql_agent",
			Name:      "node_executions_total",
			Help:      "Total node executions",
		},
		[]string{"node", "status"},
	)

	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "sql_agent",
			Name:      "node_duration_seconds",
			Help:      "Node execution duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"node"},
	)

	// Recovered faults rendered into the log
	RecoveredFaultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "sql_agent",
			Name:      "recovered_faults_total",
			Help:      "Faults converted into log content",
		},
		[]string{"node", "code"},
	)

	// Tool call counters
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "sql_agent",
			Name:      "tool_calls_total",
			Help:      "Total tool invocations",
		},
		[]string{"tool_name", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "sql_agent",
			Name:      "tool_duration_seconds",
			Help:      "Tool execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"tool_name"},
	)

	// LLM calls
	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "sql_agent",
			Name:      "llm_calls_total",
			Help:      "Total language model calls",
		},
		[]string{"mode", "status"},
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "sql_agent",
			Name:      "llm_duration_seconds",
			Help:      "Language model call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	// DB reconnects
	DBReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "sql_agent",
			Name:      "db_reconnects_total",
			Help:      "Connection pool rebuilds after a dead connection",
		},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordRun records a finished graph run
func RecordRun(status string, durationSec float64) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.WithLabelValues(status).Observe(durationSec)
}

// RecordNode records one node execution
func RecordNode(node, status string, durationSec float64) {
	NodeExecutionsTotal.WithLabelValues(node, status).Inc()
	NodeDuration.WithLabelValues(node).Observe(durationSec)
}

// RecordRecoveredFault records a fault turned into log content
func RecordRecoveredFault(node, code string) {
	RecoveredFaultsTotal.WithLabelValues(node, code).Inc()
}

// RecordToolCall records a tool invocation
func RecordToolCall(toolName, status string, durationSec float64) {
	ToolCallsTotal.WithLabelValues(toolName, status).Inc()
	ToolDuration.WithLabelValues(toolName).Observe(durationSec)
}

// RecordLLMCall records a language model call
func RecordLLMCall(mode, status string, durationSec float64) {
	LLMCallsTotal.WithLabelValues(mode, status).Inc()
	LLMDuration.WithLabelValues(mode).Observe(durationSec)
}

// RecordDBReconnect records a pool rebuild
func RecordDBReconnect() {
	DBReconnectsTotal.Inc()
}
