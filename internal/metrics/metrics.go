// Package metrics exposes the Prometheus collectors behind the dashboard
// chart summaries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted counts session activations, including re-activations.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendlive",
		Name:      "sessions_started_total",
		Help:      "Number of session activations.",
	})

	// SessionsEnded counts terminations, manual or by countdown expiry.
	SessionsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendlive",
		Name:      "sessions_ended_total",
		Help:      "Number of session terminations.",
	})

	// Checkins counts ingested attendee records by method.
	Checkins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendlive",
		Name:      "checkins_total",
		Help:      "Number of attendee records ingested.",
	}, []string{"method"})

	// ActiveSessions is 0 or 1; at most one session is ever live.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "attendlive",
		Name:      "active_sessions",
		Help:      "Number of currently live sessions.",
	})

	// CountdownSeconds tracks the live countdown remaining.
	CountdownSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "attendlive",
		Name:      "countdown_remaining_seconds",
		Help:      "Seconds remaining on the live session countdown.",
	})
)
