// Package metrics exports Prometheus metrics for the decision engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exposes decision-engine metrics in Prometheus format.
type Exporter struct {
	decisions       *prometheus.CounterVec
	decisionSeconds prometheus.Histogram
	templateEvals   *prometheus.CounterVec
	chainExemptions prometheus.Counter
	configReloads   *prometheus.CounterVec
	activeChains    prometheus.Gauge
}

// NewExporter registers the metrics on a fresh registry and returns the
// exporter together with the registry's HTTP handler.
func NewExporter() (*Exporter, http.Handler) {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	e := &Exporter{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callguard_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"effect", "reason"},
		),
		decisionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "callguard_decision_duration_seconds",
			Help:    "Duration of authorization decisions in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		templateEvals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callguard_template_evaluations_total",
				Help: "Total number of role template evaluations",
			},
			[]string{"result"},
		),
		chainExemptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "callguard_chain_exemptions_total",
			Help: "Total number of nested calls allowed via chain exemption",
		}),
		configReloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callguard_config_reloads_total",
				Help: "Total number of configuration reloads",
			},
			[]string{"result"},
		),
		activeChains: factory.NewGauge(prometheus.GaugeOpts{
			Name: "callguard_active_chains",
			Help: "Number of call chains currently tracked",
		}),
	}
	return e, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RecordDecision records one decision outcome.
func (e *Exporter) RecordDecision(effect, reason string, durationSeconds float64) {
	e.decisions.WithLabelValues(effect, reason).Inc()
	e.decisionSeconds.Observe(durationSeconds)
}

// RecordTemplateEval records a template evaluation result (true, false, error).
func (e *Exporter) RecordTemplateEval(result string) {
	e.templateEvals.WithLabelValues(result).Inc()
}

// RecordChainExemption records a nested call allowed by its chain root.
func (e *Exporter) RecordChainExemption() {
	e.chainExemptions.Inc()
}

// RecordConfigReload records a reload attempt (ok, error).
func (e *Exporter) RecordConfigReload(result string) {
	e.configReloads.WithLabelValues(result).Inc()
}

// SetActiveChains updates the tracked-chain gauge.
func (e *Exporter) SetActiveChains(n int) {
	e.activeChains.Set(float64(n))
}
