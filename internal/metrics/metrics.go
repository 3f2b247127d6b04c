package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics captures distribution server activity.
type Metrics interface {
	ObserveRequest(method, status string, bytes int64, durationSeconds float64)
	IncInFlight()
	DecInFlight()
	IncBundleBuild(bundle, result string)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) ObserveRequest(string, string, int64, float64) {}
func (Noop) IncInFlight()                                  {}
func (Noop) DecInFlight()                                  {}
func (Noop) IncBundleBuild(string, string)                 {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	bytesServed prometheus.Counter
	inFlight    prometheus.Gauge
	builds      *prometheus.CounterVec
	once        sync.Once
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "File requests by method and status",
		}, []string{"method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "File request latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		bytesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_served_total",
			Help:      "Response body bytes written",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Requests currently holding a worker slot",
		}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_builds_total",
			Help:      "Bundle builds by bundle and result",
		}, []string{"bundle", "result"}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(p.requests, p.latency, p.bytesServed, p.inFlight, p.builds)
	})
}

func (p *Prom) ObserveRequest(method, status string, bytes int64, durationSeconds float64) {
	p.requests.WithLabelValues(method, status).Inc()
	p.latency.WithLabelValues(method).Observe(durationSeconds)
	if bytes > 0 {
		p.bytesServed.Add(float64(bytes))
	}
}

func (p *Prom) IncInFlight() { p.inFlight.Inc() }

func (p *Prom) DecInFlight() { p.inFlight.Dec() }

func (p *Prom) IncBundleBuild(bundle, result string) {
	p.builds.WithLabelValues(bundle, result).Inc()
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
