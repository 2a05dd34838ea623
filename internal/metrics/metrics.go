// Package metrics provides Prometheus instrumentation for the moderation
// service. It exposes counters for check outcomes and violations, a latency
// histogram for the engine, and gauges for the lexicon and preview sockets.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check outcomes recorded in ChecksTotal.
const (
	OutcomeDelivered   = "delivered"
	OutcomeBlocked     = "blocked"
	OutcomeMuted       = "muted"
	OutcomeRateLimited = "rate_limited"
	OutcomeInvalid     = "invalid"
)

var (
	// ChecksTotal counts moderation checks by outcome.
	ChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whisper_moderation_checks_total",
		Help: "Total number of moderation checks processed",
	}, []string{"outcome"})

	// ViolationsTotal counts violations by category and severity.
	ViolationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whisper_moderation_violations_total",
		Help: "Total number of violations found",
	}, []string{"category", "severity"})

	// CheckLatency records how long the engine takes per message.
	CheckLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "whisper_moderation_check_latency_seconds",
		Help:    "Moderation engine latency in seconds",
		Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
	})

	// MutesTotal counts senders muted for repeated blocked messages.
	MutesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whisper_moderation_mutes_total",
		Help: "Total number of escalating mutes applied",
	})

	// AuditFailures counts blocked attempts that could not be persisted.
	AuditFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whisper_moderation_audit_failures_total",
		Help: "Total number of audit events that failed to persist",
	})

	// LexiconWords tracks the number of words in the process lexicon.
	LexiconWords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "whisper_moderation_lexicon_words",
		Help: "Current number of profanity entries across all languages",
	})

	// PreviewConnections tracks open WebSocket preview connections.
	PreviewConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "whisper_moderation_preview_connections",
		Help: "Current number of active preview WebSocket connections",
	})
)

func init() {
	prometheus.MustRegister(
		ChecksTotal,
		ViolationsTotal,
		CheckLatency,
		MutesTotal,
		AuditFailures,
		LexiconWords,
		PreviewConnections,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
