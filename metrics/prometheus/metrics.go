// Package prometheus exports engine metrics: detection pipeline timings and
// gameplay counters fed from the event bus.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pixelhunt"

var (
	// detectionDuration is a histogram of detection pipeline duration in seconds.
	detectionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "Histogram of detection pipeline duration in seconds",
			Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
		},
		[]string{"status"}, // status: success, rejected, error
	)

	// detectionsTotal is a counter of detection jobs.
	detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Total number of detection jobs run",
		},
		[]string{"status"},
	)

	// sessionsActive is a gauge of currently running game sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently running game sessions",
		},
	)

	// gamesEndedTotal is a counter of ended sessions by outcome.
	gamesEndedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_ended_total",
			Help:      "Total number of ended game sessions",
		},
		[]string{"outcome"},
	)

	// clicksTotal is a counter of validated clicks by result.
	clicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Total number of validated clicks",
		},
		[]string{"result"}, // result: hit, miss
	)

	// hintsTotal is a counter of consumed hints.
	hintsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hints_total",
			Help:      "Total number of hints consumed",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		detectionDuration,
		detectionsTotal,
		sessionsActive,
		gamesEndedTotal,
		clicksTotal,
		hintsTotal,
	}
)

// RecordDetection records one detection job run.
func RecordDetection(status string, durationSeconds float64) {
	detectionDuration.WithLabelValues(status).Observe(durationSeconds)
	detectionsTotal.WithLabelValues(status).Inc()
}

// RecordSessionStart records a session entering the running state.
func RecordSessionStart() {
	sessionsActive.Inc()
}

// RecordSessionEnd records a session reaching a terminal state.
func RecordSessionEnd(outcome string) {
	sessionsActive.Dec()
	gamesEndedTotal.WithLabelValues(outcome).Inc()
}

// RecordClick records one validated click.
func RecordClick(result string) {
	clicksTotal.WithLabelValues(result).Inc()
}

// RecordHint records one consumed hint.
func RecordHint() {
	hintsTotal.Inc()
}
