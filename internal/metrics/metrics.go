// Package metrics provides Prometheus collectors for the scoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adaptive_detect"

var (
	// DetectRequests counts detection runs.
	// Labels: corpus (references, cross_user), result (success, error)
	DetectRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detect",
			Name:      "requests_total",
			Help:      "Total number of detection requests",
		},
		[]string{"corpus", "result"},
	)

	// DetectDuration tracks end-to-end detection latency.
	DetectDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detect",
			Name:      "duration_seconds",
			Help:      "Duration of detection requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"corpus"},
	)

	// CandidatesFlagged counts fused results at or above the effective threshold.
	CandidatesFlagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detect",
			Name:      "candidates_flagged_total",
			Help:      "Total number of candidate matches flagged",
		},
	)

	// AnalyzerCacheLookups counts analyzer cache lookups.
	// Labels: result (hit, miss)
	AnalyzerCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "cache_lookups_total",
			Help:      "Total number of analyzer score cache lookups",
		},
		[]string{"result"},
	)

	// FeedbackRecorded counts accepted feedback submissions.
	// Labels: type (false_positive, confirmed)
	FeedbackRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feedback",
			Name:      "recorded_total",
			Help:      "Total number of feedback records appended",
		},
		[]string{"type"},
	)

	// TunerDecisions counts retrain and rollback outcomes.
	// Labels: trigger (retrain, rollback), decision (commit, reject, no_op)
	TunerDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tuner",
			Name:      "decisions_total",
			Help:      "Total number of tuner decisions by trigger and outcome",
		},
		[]string{"trigger", "decision"},
	)

	// LayerWeight exposes the live fusion weight per layer.
	LayerWeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tuner",
			Name:      "layer_weight",
			Help:      "Current fusion weight per detection layer",
		},
		[]string{"layer"},
	)

	// EffectiveThreshold exposes the live flagging threshold.
	EffectiveThreshold = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tuner",
			Name:      "effective_threshold",
			Help:      "Current effective detection threshold",
		},
	)
)

// ObserveWeights sets the weight gauges from the published values.
func ObserveWeights(semantic, stylometry, crossLang, threshold float64) {
	LayerWeight.WithLabelValues("semantic").Set(semantic)
	LayerWeight.WithLabelValues("stylometry").Set(stylometry)
	LayerWeight.WithLabelValues("cross_lang").Set(crossLang)
	EffectiveThreshold.Set(threshold)
}
