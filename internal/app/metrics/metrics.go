// Package metrics exposes the platform's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "usdt_miner",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usdt_miner",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "usdt_miner",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	accrualRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "usdt_miner",
			Subsystem: "accrual",
			Name:      "runs_total",
			Help:      "Total number of daily accrual runs.",
		},
	)

	accrualProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "usdt_miner",
			Subsystem: "accrual",
			Name:      "members_processed_total",
			Help:      "Members credited with ROI across all runs.",
		},
	)

	accrualFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "usdt_miner",
			Subsystem: "accrual",
			Name:      "member_failures_total",
			Help:      "Per-member failures across all accrual runs.",
		},
	)

	accrualPaid = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "usdt_miner",
			Subsystem: "accrual",
			Name:      "roi_paid_total",
			Help:      "Cumulative ROI credited by accrual runs.",
		},
	)

	accrualDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "usdt_miner",
			Subsystem: "accrual",
			Name:      "run_duration_seconds",
			Help:      "Duration of daily accrual runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
	)

	withdrawalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usdt_miner",
			Subsystem: "withdrawals",
			Name:      "requests_total",
			Help:      "Withdrawal requests by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		accrualRuns,
		accrualProcessed,
		accrualFailures,
		accrualPaid,
		accrualDuration,
		withdrawalRequests,
	)
}

// ObserveAccrualRun records one batch accrual pass.
func ObserveAccrualRun(processed, failures int, totalROI float64, duration time.Duration) {
	accrualRuns.Inc()
	accrualProcessed.Add(float64(processed))
	accrualFailures.Add(float64(failures))
	accrualPaid.Add(totalROI)
	accrualDuration.Observe(duration.Seconds())
}

// ObserveWithdrawal counts a withdrawal request outcome.
func ObserveWithdrawal(outcome string) {
	withdrawalRequests.WithLabelValues(outcome).Inc()
}

// Handler serves the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncInFlight marks a request as started.
func IncInFlight() { httpInFlight.Inc() }

// DecInFlight marks a request as finished.
func DecInFlight() { httpInFlight.Dec() }

// ObserveHTTP records one handled request. The path label should be the
// routing pattern, not the raw URL, to keep cardinality bounded.
func ObserveHTTP(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
