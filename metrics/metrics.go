package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicedesk_requests_total",
			Help: "Total number of webhook requests",
		},
		[]string{"endpoint", "status"},
	)

	TurnCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicedesk_turns_total",
			Help: "Dialogue turns by outcome",
		},
		[]string{"outcome"},
	)

	PlannerLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voicedesk_planner_latency_seconds",
			Help:    "Planner latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15},
		},
	)

	PlannerFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicedesk_planner_fallbacks_total",
			Help: "Turns answered with the fallback plan",
		},
		[]string{"reason"},
	)

	LockOverrides = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicedesk_lock_overrides_total",
			Help: "Planner proposals redirected back to the locked task",
		},
		[]string{"task"},
	)

	ActiveCalls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voicedesk_active_calls",
			Help: "Number of calls with live session state",
		},
	)

	CallsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicedesk_calls_ended_total",
			Help: "Calls ended, by reason",
		},
		[]string{"reason"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicedesk_notifications_total",
			Help: "Notifications dispatched, by kind and result",
		},
		[]string{"kind", "result"},
	)
)
