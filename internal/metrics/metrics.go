// Package metrics holds the Prometheus collectors for engine requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// requests counts engine requests by flow and outcome
	requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circinspect_requests_total",
			Help: "Total engine requests by flow and outcome",
		},
		[]string{"flow", "outcome"},
	)

	// requestDuration tracks end-to-end request latency
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "circinspect_request_duration_seconds",
			Help:    "Engine request latency by flow",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"flow"},
	)

	// executions tracks time spent running submitted programs
	executions = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "circinspect_program_execution_seconds",
			Help:    "Wall time of individual program executions",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		},
	)

	// commandCount tracks the size of built command models
	commandCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "circinspect_commands_per_model",
			Help:    "Number of commands in each built model",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// steps counts debugger navigation by action and whether a target was found
	steps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circinspect_debug_steps_total",
			Help: "Total debugger navigation steps by action and result",
		},
		[]string{"action", "found"},
	)
)

// Outcome labels.
const (
	OutcomeOK           = "ok"
	OutcomeProgramError = "program_error"
	OutcomeNoCircuit    = "no_circuit"
	OutcomeTimeout      = "timeout"
	OutcomeBadToken     = "bad_token"
	OutcomeInternal     = "internal"
)

// ObserveRequest records one finished request.
func ObserveRequest(flow, outcome string, d time.Duration) {
	requests.WithLabelValues(flow, outcome).Inc()
	requestDuration.WithLabelValues(flow).Observe(d.Seconds())
}

// ObserveExecution records one program run.
func ObserveExecution(d time.Duration) {
	executions.Observe(d.Seconds())
}

// ObserveModel records the size of a built model.
func ObserveModel(commands int) {
	commandCount.Observe(float64(commands))
}

// ObserveStep records one navigation step.
func ObserveStep(action string, found bool) {
	steps.WithLabelValues(action, strconv.FormatBool(found)).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
