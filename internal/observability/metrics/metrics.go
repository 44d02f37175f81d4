// Package metrics provides Prometheus instrumentation for explorerverify.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu          sync.RWMutex
	enabled     bool
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Verification domain metrics
	verificationTotal    *prometheus.CounterVec
	verificationDuration *prometheus.HistogramVec
	verificationsRunning prometheus.Gauge
	explorerPollsTotal   *prometheus.CounterVec
	explorerSubmitTotal  *prometheus.CounterVec
)

// Init initializes the metrics system. Each call starts a fresh registry.
func Init(enabledFlag bool, svcName string) {
	mu.Lock()
	defer mu.Unlock()

	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		registry = nil
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"service": svcName}, registry))

	// HTTP request counter
	httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration histogram
	httpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	verificationTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_total",
			Help: "Total number of verification attempts by terminal status",
		},
		[]string{"chain_id", "status"},
	)

	// Explorer queues can take minutes
	verificationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verification_duration_seconds",
			Help:    "Time from submission to terminal status",
			Buckets: []float64{1, 3, 6, 10, 20, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	verificationsRunning = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "verifications_running",
			Help: "Verification jobs currently in flight",
		},
	)

	explorerPollsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_status_polls_total",
			Help: "Total number of status polls sent to explorers",
		},
		[]string{"outcome"},
	)

	explorerSubmitTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_submissions_total",
			Help: "Total number of verification submissions by outcome",
		},
		[]string{"chain_id", "result"},
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	mu.RLock()
	defer mu.RUnlock()

	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	mu.RLock()
	defer mu.RUnlock()
	return serviceName
}
