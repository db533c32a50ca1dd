package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	apiRequestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness_client",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Number of activity API requests grouped by operation and status code.",
	}, []string{"operation", "code"})

	apiLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fitness_client",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "Latency of activity API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	loginCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness_client",
		Subsystem: "session",
		Name:      "logins_total",
		Help:      "Login attempts grouped by outcome (started, succeeded, failed, skipped).",
	}, []string{"outcome"})

	lastRefreshGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitness_client",
		Subsystem: "aggregate",
		Name:      "last_refresh_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful activity refresh.",
	})
)

func init() {
	prometheus.MustRegister(apiRequestCounter, apiLatency, loginCounter, lastRefreshGauge)
}

// RecordAPIRequest counts one API call. A zero code means the request never
// produced a response.
func RecordAPIRequest(operation string, code int, elapsed time.Duration) {
	label := "error"
	if code != 0 {
		label = strconv.Itoa(code)
	}
	apiRequestCounter.WithLabelValues(operation, label).Inc()
	apiLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordLogin counts a login state transition.
func RecordLogin(outcome string) {
	loginCounter.WithLabelValues(outcome).Inc()
}

// RecordRefresh updates the refresh watermark gauge.
func RecordRefresh(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastRefreshGauge.Set(float64(ts.Unix()))
}
