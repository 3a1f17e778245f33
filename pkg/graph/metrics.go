package graph

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "nixg"
	subsystem = "graph"
)

// Metrics holds the process-wide engine metrics. Register them with
// Metrics.MustRegister to expose them.
var Metrics = newGraphMetrics()

// GraphMetrics holds prometheus collectors for the graph engine.
type GraphMetrics struct {
	attempts    prometheus.Counter
	successes   prometheus.Counter
	errors      prometheus.Counter
	flattenings prometheus.Counter
	fallbacks   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func newGraphMetrics() *GraphMetrics {
	return &GraphMetrics{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attempts_total",
			Help:      "Expressions offered to the graph engine.",
		}),
		successes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "successes_total",
			Help:      "Expressions the graph engine evaluated to a value.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Admitted expressions that failed with an evaluation error.",
		}),
		flattenings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "flattenings_total",
			Help:      "Attribute layer chains collapsed to stay within the chain bound.",
		}),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fallbacks_total",
				Help:      "Expressions the graph engine declined, by reason.",
			},
			[]string{"reason"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Time spent in TryEvaluate in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 14), // 10µs to ~80ms
			},
			[]string{"result"}, // "success", "error" or "fallback"
		),
	}
}

// ObserveAttempt records an expression offered to the engine.
func (m *GraphMetrics) ObserveAttempt() {
	m.attempts.Inc()
}

// ObserveFallback records a decline and the time it took.
func (m *GraphMetrics) ObserveFallback(reason string, durationSeconds float64) {
	m.fallbacks.WithLabelValues(reason).Inc()
	m.duration.WithLabelValues("fallback").Observe(durationSeconds)
}

// ObserveResult records a finished evaluation.
func (m *GraphMetrics) ObserveResult(durationSeconds float64, err error) {
	result := "success"
	if err != nil {
		result = "error"
		m.errors.Inc()
	} else {
		m.successes.Inc()
	}
	m.duration.WithLabelValues(result).Observe(durationSeconds)
}

// ObserveFlattening records one collapsed layer chain.
func (m *GraphMetrics) ObserveFlattening() {
	m.flattenings.Inc()
}

// MustRegister registers the metrics with the given Prometheus registry.
func (m *GraphMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(m.attempts, m.successes, m.errors, m.flattenings, m.fallbacks, m.duration)
}
