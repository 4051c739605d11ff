/*
   Prometheus collectors for the recommendation engines and the services
   that run them. Every method is safe to call on a nil *Metrics, which is
   what engines get when the caller does not care about metrics.
*/
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine label values.
const (
	EngineRanker      = "ranker"
	EnginePropagation = "propagation"
)

type Metrics struct {
	droppedRows *prometheus.CounterVec
	iterations  *prometheus.GaugeVec
	fallbacks   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	runErrors   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		droppedRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "motorec",
				Name:      "dropped_rows_total",
				Help:      "Input rows skipped because of a missing id or unparseable value",
			},
			[]string{"kind"},
		),
		iterations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "motorec",
				Name:      "engine_iterations",
				Help:      "Iterations used by the last run of an engine",
			},
			[]string{"engine"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "motorec",
				Name:      "fallbacks_total",
				Help:      "Results served from a fallback path",
			},
			[]string{"engine", "reason"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "motorec",
				Name:      "service_run_duration_seconds",
				Help:      "Duration of a service pass",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"service"},
		),
		runErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "motorec",
				Name:      "service_run_errors_total",
				Help:      "Failed service passes",
			},
			[]string{"service"},
		),
	}
}

func (m *Metrics) DroppedRows(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedRows.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) Iterations(engine string, n int) {
	if m == nil {
		return
	}
	m.iterations.WithLabelValues(engine).Set(float64(n))
}

func (m *Metrics) Fallback(engine, reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(engine, reason).Inc()
}

// ObserveRun records the duration of a service pass and counts it as failed
// when err is not nil.
func (m *Metrics) ObserveRun(service string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(service).Observe(took.Seconds())
	if err != nil {
		m.runErrors.WithLabelValues(service).Inc()
	}
}
