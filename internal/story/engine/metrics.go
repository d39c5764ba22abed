package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Entry point labels.
const (
	entryTrip          = "trip"
	entryItinerary     = "itinerary"
	entryCommunication = "communication"
	entryProposal      = "proposal"
)

var (
	// stageTransitions counts persisted stage changes.
	// Labels: from, to, reason (mutation reason)
	stageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "story",
		Name:      "stage_transitions_total",
		Help:      "Total story stage transitions",
	}, []string{"from", "to", "reason"})

	// engineSkips counts notifications ignored for missing linkage.
	// Labels: entry, reason
	engineSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "story",
		Subsystem: "engine",
		Name:      "skips_total",
		Help:      "Total change notifications skipped by the story engine",
	}, []string{"entry", "reason"})

	// engineDuration measures entry point latency.
	// Labels: entry
	engineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "story",
		Subsystem: "engine",
		Name:      "duration_seconds",
		Help:      "Story engine entry point duration in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"entry"})
)

func observeDuration(entry string, start time.Time) {
	engineDuration.WithLabelValues(entry).Observe(time.Since(start).Seconds())
}

func (e *Engine) skip(entry, reason string, args ...any) {
	engineSkips.WithLabelValues(entry, reason).Inc()
	e.log.Debug("story engine skipped notification", append([]any{"entry", entry, "reason", reason}, args...)...)
}
