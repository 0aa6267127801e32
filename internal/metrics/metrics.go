// Package metrics provides Prometheus metrics for batch runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "usagemetrics"

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder holds the collectors for one registry. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	batches       *prometheus.CounterVec
	communities   prometheus.Gauge
}

// NewRecorder registers all collectors on a fresh registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Analytics requests by kind and outcome.",
		}, []string{"kind", "outcome", "reason"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Analytics request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Analytics requests currently executing.",
		}),
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Completed batch runs by outcome.",
		}, []string{"outcome"}),
		communities: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "communities_discovered",
			Help:      "Communities returned by the last discovery call.",
		}),
	}
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// TaskStarted marks one request as in flight
func (r *Recorder) TaskStarted() {
	if r == nil {
		return
	}
	r.inFlight.Inc()
}

// TaskFinished records the outcome of one request. reason is the error kind
// for failures and empty on success.
func (r *Recorder) TaskFinished(kind, reason string, d time.Duration) {
	if r == nil {
		return
	}
	r.inFlight.Dec()

	outcome := OutcomeSuccess
	if reason != "" {
		outcome = OutcomeFailure
	}
	r.fetches.WithLabelValues(kind, outcome, reason).Inc()
	r.fetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Discovered records the size of a discovery response
func (r *Recorder) Discovered(n int) {
	if r == nil {
		return
	}
	r.communities.Set(float64(n))
}

// BatchFinished counts one batch run
func (r *Recorder) BatchFinished(err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.batches.WithLabelValues(OutcomeFailure).Inc()
		return
	}
	r.batches.WithLabelValues(OutcomeSuccess).Inc()
}
