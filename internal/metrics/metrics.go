// Package metrics provides Prometheus metrics for the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gateway"

// Metrics holds every collector the gateway exports. It is registered on
// its own registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	upstreamCalls        *prometheus.CounterVec
	upstreamCallDuration *prometheus.HistogramVec
	breakerState         *prometheus.GaugeVec

	discoverSource *prometheus.CounterVec
	ratingEvents   *prometheus.CounterVec
}

// New creates the collectors on a fresh registry. Process and Go runtime
// collectors are included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status code",
		}, []string{"route", "method", "status_code"}),

		httpRequestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern and method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),

		upstreamCalls: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recommender",
			Name:      "calls_total",
			Help:      "Recommendation backend calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),

		upstreamCallDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recommender",
			Name:      "call_duration_seconds",
			Help:      "Recommendation backend call latency by endpoint",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),

		breakerState: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recommender",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"breaker"}),

		discoverSource: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discover",
			Name:      "served_total",
			Help:      "Discover responses by the source that served them",
		}, []string{"source"}),

		ratingEvents: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratings",
			Name:      "events_total",
			Help:      "Rating events by stage (published, forwarded, failed)",
		}, []string{"stage"}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveCall implements recommender.Observer.
func (m *Metrics) ObserveCall(endpoint, outcome string, elapsed time.Duration) {
	m.upstreamCalls.WithLabelValues(endpoint, outcome).Inc()
	m.upstreamCallDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// BreakerStateChanged implements recommender.Observer.
func (m *Metrics) BreakerStateChanged(name, state string) {
	m.breakerState.WithLabelValues(name).Set(stateValue(state))
}

func (m *Metrics) DiscoverServed(source string) {
	m.discoverSource.WithLabelValues(source).Inc()
}

func (m *Metrics) RatingEvent(stage string) {
	m.ratingEvents.WithLabelValues(stage).Inc()
}

func stateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
