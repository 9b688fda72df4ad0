package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_events_ingested_total",
			Help: "Total number of log events ingested",
		},
		[]string{"source"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_events_dropped_total",
			Help: "Total number of log events dropped before correlation",
		},
		[]string{"reason"},
	)

	AlertsCorrelated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_alerts_correlated_total",
			Help: "Total number of correlated alerts emitted",
		},
		[]string{"severity"},
	)

	TicketTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_ticket_transitions_total",
			Help: "Total number of ticket state machine transitions",
		},
		[]string{"action"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_notifications_total",
			Help: "Total number of notification dispatch attempts",
		},
		[]string{"channel", "status"},
	)

	EventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aegis_event_processing_duration_seconds",
			Help:    "Time taken to evaluate an event against all active rules",
			Buckets: prometheus.DefBuckets,
		},
	)
)
