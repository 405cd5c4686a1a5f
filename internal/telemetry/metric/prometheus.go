// Package metric provides Prometheus metrics for tokstash.
package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/tokstash-go/internal/core/service"
)

const namespace = "tokstash"

// Registry holds the application metrics.
//
// It implements service.Recorder so the engine can report lifecycle
// events directly.
type Registry struct {
	reg *prometheus.Registry

	TokensCreated   prometheus.Counter
	TokensUpdated   prometheus.Counter
	Lookups         *prometheus.CounterVec
	ArchivedTotal   *prometheus.CounterVec
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RateLimited     *prometheus.CounterVec
}

// NewRegistry creates a registry with the application metrics and the
// Go runtime and process collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		TokensCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_created_total",
			Help:      "Tokens issued",
		}),
		TokensUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_updated_total",
			Help:      "Token expirations extended",
		}),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Token lookups by operation and outcome",
		}, []string{"op", "outcome"}),
		ArchivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archived_total",
			Help:      "Records moved to the expired partition, by triggering operation",
		}, []string{"trigger"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests handled by transport, route and status",
		}, []string{"transport", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency by transport and route",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"transport", "route"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}, []string{"transport"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.TokensCreated,
		r.TokensUpdated,
		r.Lookups,
		r.ArchivedTotal,
		r.RequestsTotal,
		r.RequestDuration,
		r.RateLimited,
	)

	return r
}

// Registerer exposes the underlying registry for components that register
// their own metrics (e.g. the badger store).
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.reg.MustRegister(cs...)
}

// Handler returns the /metrics HTTP handler.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveRequest records one handled request.
func (r *Registry) ObserveRequest(transport, route string, status int, elapsed time.Duration) {
	r.RequestsTotal.WithLabelValues(transport, route, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(transport, route).Observe(elapsed.Seconds())
}

// ObserveRateLimited records one rejected request.
func (r *Registry) ObserveRateLimited(transport string) {
	r.RateLimited.WithLabelValues(transport).Inc()
}

// TokenCreated implements service.Recorder.
func (r *Registry) TokenCreated() {
	r.TokensCreated.Inc()
}

// Lookup implements service.Recorder.
func (r *Registry) Lookup(op string, outcome service.Outcome) {
	r.Lookups.WithLabelValues(op, outcome.String()).Inc()
}

// Archived implements service.Recorder.
func (r *Registry) Archived(trigger string) {
	r.ArchivedTotal.WithLabelValues(trigger).Inc()
}

// Updated implements service.Recorder.
func (r *Registry) Updated() {
	r.TokensUpdated.Inc()
}

var _ service.Recorder = (*Registry)(nil)
