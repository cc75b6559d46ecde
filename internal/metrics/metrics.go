// Package metrics holds the Prometheus collectors shared by the API, the
// upstream clients and the notification runner.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yield_monitor_http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yield_monitor_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yield_monitor_upstream_requests_total",
		Help: "Calls to Morpho, Merkl and rewards APIs by source and outcome.",
	}, []string{"source", "outcome"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yield_monitor_notifications_total",
		Help: "Notifications by channel (push, email) and outcome.",
	}, []string{"channel", "outcome"})

	yieldCalculations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yield_monitor_yield_calculations_total",
		Help: "Per-address yield summaries by result.",
	}, []string{"result"})

	dispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "yield_monitor_daily_dispatch_duration_seconds",
		Help:    "Wall time of a daily notification run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

func RecordHTTPRequest(route, method string, status int, d time.Duration) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func RecordUpstream(source string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamRequests.WithLabelValues(source, outcome).Inc()
}

func RecordNotification(channel string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	notifications.WithLabelValues(channel, outcome).Inc()
}

func RecordNotificationSkipped(channel string) {
	notifications.WithLabelValues(channel, "skipped").Inc()
}

func RecordYieldCalculation(result string) {
	yieldCalculations.WithLabelValues(result).Inc()
}

func ObserveDispatch(d time.Duration) {
	dispatchDuration.Observe(d.Seconds())
}
