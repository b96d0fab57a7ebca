package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	cycleDuration *prom.HistogramVec
	cycleOutcome  *prom.CounterVec
	recompiles    *prom.CounterVec
	coalesced     prom.Counter
}

// NewPrometheusRecorder constructs and registers metrics on the registry
// (a fresh registry is created when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		cycleDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "codegend",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of generation cycles by outcome",
			Buckets:   prom.DefBuckets,
		}, []string{"outcome"}),
		cycleOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "codegend",
			Name:      "cycle_outcomes_total",
			Help:      "Generation cycle outcomes",
		}, []string{"outcome"}),
		recompiles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "codegend",
			Name:      "recompiles_total",
			Help:      "Recompile calls by the generation status observed at call time",
		}, []string{"status"}),
		coalesced: prom.NewCounter(prom.CounterOpts{
			Namespace: "codegend",
			Name:      "coalesced_triggers_total",
			Help:      "Build triggers coalesced into an already-running cycle",
		}),
	}
	reg.MustRegister(pr.cycleDuration, pr.cycleOutcome, pr.recompiles, pr.coalesced)
	return pr
}

func (p *PrometheusRecorder) ObserveCycleDuration(outcome string, d time.Duration) {
	p.cycleDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCycleOutcome(outcome string) {
	p.cycleOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncRecompile(status string) {
	p.recompiles.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncCoalescedTrigger() {
	p.coalesced.Inc()
}

// HTTPHandler returns an http.Handler serving Prometheus metrics for the
// registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
