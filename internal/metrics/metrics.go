// Package metrics provides Prometheus instrumentation for the relay
// gateway. It exposes gauges for session counts, counters for frame
// throughput and driver close reasons, and a histogram for long-poll wait
// latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsActive holds the number of registered sessions, alive or
	// pending removal, as counted at the most recent session creation or
	// driver exit. A session's removal from the registry after the
	// retention window does not update it.
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_sessions_active",
		Help: "Current number of registered sessions",
	})

	// FramesForwarded counts frames delivered from upstream into a
	// session's inbound buffer.
	FramesForwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_frames_forwarded_total",
		Help: "Total number of upstream frames forwarded into session buffers",
	})

	// SessionsClosedTotal counts driver exits, labeled by reason.
	SessionsClosedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_sessions_closed_total",
		Help: "Total number of sessions closed, labeled by reason",
	}, []string{"reason"})

	// LongPollWaitSeconds records how long long-poll reads actually
	// waited before returning.
	LongPollWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_long_poll_wait_seconds",
		Help:    "Duration a long-poll read spent waiting before returning",
		Buckets: []float64{.01, .05, .1, .5, 1, 2, 5, 10, 20},
	})
)

func init() {
	prometheus.MustRegister(
		SessionsActive,
		FramesForwarded,
		SessionsClosedTotal,
		LongPollWaitSeconds,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
