// Package metrics exposes Prometheus counters for event handling, toasts and reports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event stream metrics
var (
	// EventsTotal counts opencode events received by type
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocburn_events_total",
			Help: "Total number of opencode events received by type",
		},
		[]string{"type"},
	)

	// InflightSkips counts message.updated events dropped because the session was busy
	InflightSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ocburn_inflight_skips_total",
			Help: "Total number of message updates skipped while the session was already being handled",
		},
	)
)

// Notification metrics
var (
	// ToastsTotal counts toasts shown by variant
	ToastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocburn_toasts_total",
			Help: "Total number of toasts shown by variant",
		},
		[]string{"variant"},
	)

	// ToastsSuppressed counts toast decisions that were throttled
	ToastsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ocburn_toasts_suppressed_total",
			Help: "Total number of toast decisions suppressed by throttling",
		},
	)

	// SessionsRecorded counts session records saved to history
	SessionsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ocburn_sessions_recorded_total",
			Help: "Total number of session records saved to history",
		},
	)
)

// Report metrics
var (
	// ReportDuration tracks how long each report tool takes
	ReportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocburn_report_duration_seconds",
			Help:    "Duration of report tool calls by tool",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
)

// RecordEvent increments the event counter
func RecordEvent(eventType string) {
	EventsTotal.WithLabelValues(eventType).Inc()
}

// RecordToast increments the toast counter
func RecordToast(variant string) {
	ToastsTotal.WithLabelValues(variant).Inc()
}

// RecordToastSuppressed increments the suppressed toast counter
func RecordToastSuppressed() {
	ToastsSuppressed.Inc()
}

// RecordSession increments the recorded sessions counter
func RecordSession() {
	SessionsRecorded.Inc()
}

// RecordInflightSkip increments the in-flight skip counter
func RecordInflightSkip() {
	InflightSkips.Inc()
}

// ObserveReport records the duration of one report tool call
func ObserveReport(tool string, d time.Duration) {
	ReportDuration.WithLabelValues(tool).Observe(d.Seconds())
}
