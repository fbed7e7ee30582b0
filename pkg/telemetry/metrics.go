// Package telemetry exposes governance counters as Prometheus collectors.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the governance-specific collectors.
var Registry = prometheus.NewRegistry()

var (
	ActiveTimers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "governd",
		Subsystem: "ledger",
		Name:      "active_timers",
		Help:      "Current number of tracked one-shot timers.",
	})

	ActiveIntervals = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "governd",
		Subsystem: "ledger",
		Name:      "active_intervals",
		Help:      "Current number of tracked repeating timers.",
	})

	ActiveListeners = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "governd",
		Subsystem: "ledger",
		Name:      "active_listeners",
		Help:      "Current number of tracked event listeners.",
	})

	TrackedComponents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "governd",
		Subsystem: "ledger",
		Name:      "tracked_components",
		Help:      "Current number of registered components.",
	})

	HeapUsedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "governd",
		Subsystem: "snapshot",
		Name:      "heap_used_bytes",
		Help:      "Heap bytes in use at the last snapshot.",
	})

	AlertBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "governd",
		Subsystem: "alerts",
		Name:      "unresolved_findings",
		Help:      "Current number of unresolved findings.",
	})

	FindingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "governd",
		Subsystem: "alerts",
		Name:      "findings_total",
		Help:      "Total findings appended, by severity.",
	}, []string{"severity"})

	FlagEvaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "governd",
		Subsystem: "flags",
		Name:      "evaluations_total",
		Help:      "Total flag evaluations, by reason.",
	}, []string{"reason"})

	BlockedInputs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "governd",
		Subsystem: "threat",
		Name:      "blocked_inputs_total",
		Help:      "Total inputs rejected by the threat scanner.",
	})
)

func init() {
	Registry.MustRegister(
		ActiveTimers,
		ActiveIntervals,
		ActiveListeners,
		TrackedComponents,
		HeapUsedBytes,
		AlertBacklog,
		FindingsTotal,
		FlagEvaluations,
		BlockedInputs,
	)
}

// Handler serves the registry in Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
