// Package metrics exposes Prometheus metrics for the realtime relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scribeline"

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	// Session lifecycle
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionDuration prometheus.Histogram
	SessionsEvicted prometheus.Counter

	// Audio ingress
	AudioFrames prometheus.Counter
	AudioBytes  prometheus.Counter

	// Transcript events
	Partials           prometheus.Counter
	FinalsCommitted    prometheus.Counter
	UnformattedDropped prometheus.Counter

	// Upstream recovery
	ReconnectAttempts prometheus.Counter
	ReconnectFailures prometheus.Counter
}

// Default is the global metrics instance, registered once at init.
var Default = newMetrics()

func newMetrics() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of relay sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active relay sessions",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of relay sessions in seconds",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}),
		SessionsEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Total number of stale sessions evicted by the reaper",
		}),
		AudioFrames: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_total",
			Help:      "Total number of audio frames forwarded upstream",
		}),
		AudioBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Total audio payload bytes forwarded upstream",
		}),
		Partials: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_partials_total",
			Help:      "Total number of partial transcript events relayed",
		}),
		FinalsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_finals_total",
			Help:      "Total number of final transcript lines committed",
		}),
		UnformattedDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_unformatted_dropped_total",
			Help:      "Total number of unformatted duplicate finals discarded",
		}),
		ReconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of upstream reconnect attempts",
		}),
		ReconnectFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_failures_total",
			Help:      "Total number of sessions that exhausted all reconnect attempts",
		}),
	}
}
