package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	namespace = "ocr_watchdog"

	proxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_requests_total",
			Help:      "Total number of proxied requests",
		},
		[]string{"method", "code"},
	)

	proxyRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "proxy_request_duration_seconds",
			Help:      "Proxied request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	backendStartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_starts_total",
			Help:      "Number of backend container starts",
		},
	)

	backendStopsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_stops_total",
			Help:      "Number of backend container stops triggered by idle shutdown",
		},
	)

	backendIdleSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_idle_seconds",
			Help:      "Seconds since the last proxied request",
		},
	)
)

func ProxyRequest(method, code string, duration time.Duration) {
	proxyRequestsTotal.With(prometheus.Labels{
		"method": method,
		"code":   code,
	}).Inc()
	proxyRequestDuration.With(prometheus.Labels{
		"method": method,
	}).Observe(duration.Seconds())
}

func BackendStarted() {
	backendStartsTotal.Inc()
}

func BackendStopped() {
	backendStopsTotal.Inc()
}

func SetIdleSeconds(seconds float64) {
	backendIdleSeconds.Set(seconds)
}
