package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/money-model/internal/experiment"
)

// Metrics holds the Prometheus collectors for one server.
type Metrics struct {
	registry    *prometheus.Registry
	experiments prometheus.Counter
	trials      prometheus.Counter
	samples     prometheus.Counter
	duration    prometheus.Histogram
}

// NewMetrics creates collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		experiments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "moneysim",
			Name:      "experiments_total",
			Help:      "Experiments run through the API.",
		}),
		trials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "moneysim",
			Name:      "trials_total",
			Help:      "Model trials run through the API.",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "moneysim",
			Name:      "wealth_samples_total",
			Help:      "Agent wealth values collected across all trials.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "moneysim",
			Name:      "experiment_duration_seconds",
			Help:      "Wall time of a full experiment.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	m.registry.MustRegister(m.experiments, m.trials, m.samples, m.duration)
	return m
}

// Observe records a finished experiment.
func (m *Metrics) Observe(exp *experiment.Experiment) {
	m.experiments.Inc()
	m.trials.Add(float64(exp.Params.Trials))
	m.samples.Add(float64(len(exp.Sample)))
	m.duration.Observe(exp.Duration.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
