// Package telemetry holds the Prometheus metrics and OpenTelemetry setup.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ShiftTransitions counts start, end and emergency_end transitions.
	ShiftTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shiftdesk_shift_transitions_total",
		Help: "Shift lifecycle transitions by kind.",
	}, []string{"transition"})

	// ActiveShift is 1 while a shift holds the active slot.
	ActiveShift = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shiftdesk_active_shift",
		Help: "1 when a shift is active, 0 otherwise.",
	})

	// HandoverDuration observes the wall time of executed handovers.
	HandoverDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shiftdesk_handover_duration_seconds",
		Help:    "Duration of handover execution.",
		Buckets: prometheus.DefBuckets,
	})

	// HandoverOutcomes counts handovers by outcome.
	HandoverOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shiftdesk_handovers_total",
		Help: "Handovers by outcome (completed, recovered, rejected, partial_failure).",
	}, []string{"outcome"})

	// LinkageResults counts linkage calls by operation and result code.
	LinkageResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shiftdesk_linkage_results_total",
		Help: "Linkage calls by operation and result code.",
	}, []string{"operation", "code"})

	// ReconcileRows counts rows handled by reconcile runs.
	ReconcileRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shiftdesk_reconcile_rows_total",
		Help: "Ledger rows processed by reconcile, by outcome.",
	}, []string{"outcome"})

	// EventsPublished counts event deliveries by outcome.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shiftdesk_events_total",
		Help: "Events handed to publishers, by outcome (sent, failed).",
	}, []string{"outcome"})

	// ExitQueueDepth is the number of exit updates waiting to be flushed.
	ExitQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shiftdesk_exit_queue_depth",
		Help: "Exit statistics updates waiting to be flushed.",
	})

	// WebsocketClients is the number of connected dashboard clients.
	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shiftdesk_websocket_clients",
		Help: "Connected dashboard websocket clients.",
	})

	// HTTPRequests counts API requests by route and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shiftdesk_http_requests_total",
		Help: "HTTP requests by route pattern and status code.",
	}, []string{"route", "code"})
)
