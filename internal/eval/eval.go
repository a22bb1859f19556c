// Package eval projects a committed weight change back onto the recorded
// feedback: which confirmed matches would still be flagged and which false
// positives would drop below the new threshold.
package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/adaptive-detect/internal/feedback"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

// #region eval-harness
// EvalHarness runs lightweight post-commit validation on a weight state.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run compares old and next against the feedback log. Match scores are the
// fused scores recorded at feedback time, so the projection only reflects
// the threshold move, not the reweighting.
func (h *EvalHarness) Run(old, next state.WeightState, records []feedback.Record) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	threshold := next.EffectiveThreshold()

	var confirmed, retained, fps, suppressed int
	for _, r := range records {
		switch r.FeedbackType {
		case feedback.Confirmed:
			confirmed++
			if r.MatchScore >= threshold {
				retained++
			}
		case feedback.FalsePositive:
			fps++
			if r.MatchScore < threshold {
				suppressed++
			}
		}
	}

	// 1. Confirmed matches that stay flagged. Vacuously passes with no confirmed feedback.
	retainedRate := 1.0
	if confirmed > 0 {
		retainedRate = float64(retained) / float64(confirmed)
	}
	retainedPass := retainedRate >= h.config.MinConfirmedRetained
	metrics = append(metrics, EvalMetric{Name: "confirmed_retained", Value: retainedRate, Pass: retainedPass})
	if !retainedPass {
		failReasons = append(failReasons, fmt.Sprintf("confirmed retained %.2f below %.2f", retainedRate, h.config.MinConfirmedRetained))
	}

	// 2. Threshold shift bound
	shift := threshold - old.EffectiveThreshold()
	shiftPass := math.Abs(shift) <= h.config.MaxThresholdShift
	metrics = append(metrics, EvalMetric{Name: "threshold_shift", Value: shift, Pass: shiftPass})
	if !shiftPass {
		failReasons = append(failReasons, fmt.Sprintf("threshold shift %+.2f exceeds %.2f", shift, h.config.MaxThresholdShift))
	}

	// 3. False positives suppressed: informational, never fails
	var suppressedRate float64
	if fps > 0 {
		suppressedRate = float64(suppressed) / float64(fps)
	}
	metrics = append(metrics, EvalMetric{Name: "fp_suppressed", Value: suppressedRate, Pass: true})

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// Metric returns the named metric, if present.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// #endregion eval-harness
