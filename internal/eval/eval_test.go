package eval

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/adaptive-detect/internal/feedback"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

func withAdjustment(adj float64) state.WeightState {
	ws := state.DefaultWeights()
	ws.ThresholdAdjustment = adj
	return ws
}

func rec(typ feedback.Type, score float64) feedback.Record {
	return feedback.Record{DocID: "d", FeedbackType: typ, MatchScore: score}
}

func TestEvalPassesWithoutFeedback(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	result := h.Run(withAdjustment(0), withAdjustment(2.5), nil)

	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	if len(result.Metrics) != 3 {
		t.Fatalf("expected 3 metrics, got %d", len(result.Metrics))
	}
}

func TestEvalProjectsThresholdMove(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	records := []feedback.Record{
		rec(feedback.Confirmed, 80),
		rec(feedback.Confirmed, 60),
		rec(feedback.FalsePositive, 41),
		rec(feedback.FalsePositive, 50),
	}
	// 40 -> 42.5: the FP at 41 drops below, the one at 50 stays
	result := h.Run(withAdjustment(0), withAdjustment(2.5), records)

	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Reason)
	}
	m, ok := result.Metric("fp_suppressed")
	if !ok || m.Value != 0.5 {
		t.Fatalf("expected fp_suppressed 0.5, got %+v", m)
	}
	m, _ = result.Metric("confirmed_retained")
	if m.Value != 1 {
		t.Fatalf("expected all confirmed retained, got %f", m.Value)
	}
	m, _ = result.Metric("threshold_shift")
	if math.Abs(m.Value-2.5) > 1e-12 {
		t.Fatalf("expected shift 2.5, got %f", m.Value)
	}
}

func TestEvalFailsWhenConfirmedDropped(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	records := []feedback.Record{
		rec(feedback.Confirmed, 41),
		rec(feedback.Confirmed, 90),
	}
	result := h.Run(withAdjustment(0), withAdjustment(2.5), records)

	if result.Passed {
		t.Fatal("expected fail when half the confirmed matches fall below the threshold")
	}
	m, _ := result.Metric("confirmed_retained")
	if m.Pass || m.Value != 0.5 {
		t.Fatalf("unexpected metric %+v", m)
	}
}

func TestEvalFailsOnLargeShift(t *testing.T) {
	config := DefaultEvalConfig()
	config.MaxThresholdShift = 1.0
	h := NewEvalHarness(config)

	result := h.Run(withAdjustment(0), withAdjustment(-2.5), nil)
	if result.Passed {
		t.Fatal("expected fail on threshold shift beyond bound")
	}
	if result.Reason == "" || result.Reason == "all checks passed" {
		t.Fatalf("expected failure reason, got %q", result.Reason)
	}
}

func TestEvalMultipleFailures(t *testing.T) {
	config := DefaultEvalConfig()
	config.MaxThresholdShift = 1.0
	h := NewEvalHarness(config)

	records := []feedback.Record{rec(feedback.Confirmed, 41)}
	result := h.Run(withAdjustment(0), withAdjustment(2.5), records)
	if result.Passed {
		t.Fatal("expected fail")
	}
	want := "eval failed: 2 checks: confirmed retained 0.00 below 0.90"
	if result.Reason != want {
		t.Fatalf("reason = %q, want %q", result.Reason, want)
	}
}
