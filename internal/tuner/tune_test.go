package tuner

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/adaptive-detect/internal/analytics"
	"github.com/danielpatrickdp/adaptive-detect/internal/feedback"
	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

// #region helpers
func snapshotOf(records []feedback.Record) analytics.Snapshot {
	t := feedback.NewTally()
	for _, r := range records {
		t.Add(r)
	}
	return analytics.FromTally(t, analytics.DefaultMinSamples)
}

func confirmed(n int) []feedback.Record {
	out := make([]feedback.Record, n)
	for i := range out {
		out[i] = feedback.Record{FeedbackType: feedback.Confirmed, MatchScore: 80}
	}
	return out
}

func falsePositives(n int, l layer.Layer) []feedback.Record {
	out := make([]feedback.Record, n)
	for i := range out {
		out[i] = feedback.Record{FeedbackType: feedback.FalsePositive, MatchScore: 45, DetectionLayer: l}
	}
	return out
}

func initial() state.WeightState {
	ws := state.DefaultWeights()
	ws.VersionID = "v0"
	return ws
}

func assertSum(t *testing.T, ws state.WeightState) {
	t.Helper()
	if math.Abs(ws.WeightSum()-1.0) > 1e-6 {
		t.Fatalf("weights sum to %.9f", ws.WeightSum())
	}
}

// #endregion helpers

// #region tune-tests
func TestTuneNoOpWhenLearningInactive(t *testing.T) {
	old := initial()
	snap := snapshotOf(falsePositives(10, layer.Stylometry))

	r1 := Tune(old, snap, DefaultConfig())
	r2 := Tune(r1.NewState, snap, DefaultConfig())

	if r1.Decision.Action != "no_op" || r2.Decision.Action != "no_op" {
		t.Fatalf("expected no_op, got %s then %s", r1.Decision.Action, r2.Decision.Action)
	}
	if r2.NewState != old {
		t.Fatalf("state changed under inactive learning: %+v", r2.NewState)
	}
}

func TestTuneStylometryScenario(t *testing.T) {
	old := initial()
	records := append(confirmed(20), falsePositives(5, layer.Stylometry)...)
	res := Tune(old, snapshotOf(records), DefaultConfig())

	if res.Decision.Action != "commit" {
		t.Fatalf("expected commit, got %s: %s", res.Decision.Action, res.Decision.Reason)
	}
	n := res.NewState
	if !(n.StylometryWeight < old.StylometryWeight) {
		t.Fatalf("stylometry should decrease: %f -> %f", old.StylometryWeight, n.StylometryWeight)
	}
	if !(n.SemanticWeight > old.SemanticWeight) || !(n.CrossLangWeight > old.CrossLangWeight) {
		t.Fatalf("other layers should increase: %+v", n)
	}
	assertSum(t, n)

	if math.Abs(n.StylometryWeight-0.25) > 1e-12 {
		t.Fatalf("expected stylometry 0.25, got %f", n.StylometryWeight)
	}
	if math.Abs(n.SemanticWeight-(0.5+0.05*0.5/0.7)) > 1e-12 {
		t.Fatalf("unexpected semantic weight %f", n.SemanticWeight)
	}
	if n.ThresholdAdjustment != 0 {
		t.Fatalf("fp rate 20%% with confirmed 80%% should not move threshold, got %f", n.ThresholdAdjustment)
	}
	if n.ParentID != old.VersionID || n.VersionID == old.VersionID {
		t.Fatalf("lineage wrong: %s -> %s", n.ParentID, n.VersionID)
	}
	if n.TotalFeedbackProcessed != 25 {
		t.Fatalf("expected 25 processed, got %d", n.TotalFeedbackProcessed)
	}
}

func TestTuneDeterministic(t *testing.T) {
	old := initial()
	snap := snapshotOf(append(confirmed(10), falsePositives(15, layer.Semantic)...))

	a := Tune(old, snap, DefaultConfig())
	b := Tune(old, snap, DefaultConfig())
	if a.NewState.SemanticWeight != b.NewState.SemanticWeight ||
		a.NewState.StylometryWeight != b.NewState.StylometryWeight ||
		a.NewState.CrossLangWeight != b.NewState.CrossLangWeight ||
		a.NewState.ThresholdAdjustment != b.NewState.ThresholdAdjustment {
		t.Fatalf("non-deterministic: %+v vs %+v", a.NewState, b.NewState)
	}
}

func TestTuneRaisesThresholdOnHighFPRate(t *testing.T) {
	old := initial()
	records := append(confirmed(10), falsePositives(15, "")...)
	res := Tune(old, snapshotOf(records), DefaultConfig())

	if res.NewState.ThresholdAdjustment != 2.5 {
		t.Fatalf("expected +2.5, got %f", res.NewState.ThresholdAdjustment)
	}
	if res.NewState.SemanticWeight != old.SemanticWeight {
		t.Fatal("unattributed false positives must not move weights")
	}
}

func TestTuneLowersThresholdOnHighConfirmedRate(t *testing.T) {
	old := initial()
	records := append(confirmed(24), falsePositives(1, "")...)
	res := Tune(old, snapshotOf(records), DefaultConfig())

	if res.NewState.ThresholdAdjustment != -2.5 {
		t.Fatalf("expected -2.5, got %f", res.NewState.ThresholdAdjustment)
	}
}

func TestTuneClampsUnderRepetition(t *testing.T) {
	cfg := DefaultConfig()
	ws := initial()
	snap := snapshotOf(append(confirmed(5), falsePositives(20, layer.CrossLang)...))

	for i := 0; i < 50; i++ {
		res := Tune(ws, snap, cfg)
		ws = res.NewState
		assertSum(t, ws)
		if ws.ThresholdAdjustment > cfg.AdjustmentMax || ws.ThresholdAdjustment < cfg.AdjustmentMin {
			t.Fatalf("iteration %d: adjustment %f escaped clamp", i, ws.ThresholdAdjustment)
		}
		if et := ws.EffectiveThreshold(); et < 0 || et > 100 {
			t.Fatalf("iteration %d: effective threshold %f", i, et)
		}
		for _, l := range layer.Weighted {
			if ws.Weight(l) < cfg.MinWeight-1e-12 {
				t.Fatalf("iteration %d: %s weight %f under floor", i, l, ws.Weight(l))
			}
		}
	}
	if ws.ThresholdAdjustment != cfg.AdjustmentMax {
		t.Fatalf("expected adjustment pinned at %f, got %f", cfg.AdjustmentMax, ws.ThresholdAdjustment)
	}
	if math.Abs(ws.CrossLangWeight-cfg.MinWeight) > 1e-9 {
		t.Fatalf("expected cross_lang at floor, got %f", ws.CrossLangWeight)
	}

	last := Tune(ws, snap, cfg)
	if last.Decision.Action != "no_op" {
		t.Fatalf("expected no_op once everything is pinned, got %s", last.Decision.Action)
	}
}

func TestTuneClampKeepsThresholdValidForExtremeBase(t *testing.T) {
	ws := initial()
	ws.BaseThreshold = 95
	snap := snapshotOf(append(confirmed(5), falsePositives(20, "")...))

	for i := 0; i < 10; i++ {
		ws = Tune(ws, snap, DefaultConfig()).NewState
	}
	if ws.BaseThreshold+ws.ThresholdAdjustment > 100 {
		t.Fatalf("raw threshold %f over 100", ws.BaseThreshold+ws.ThresholdAdjustment)
	}
}

// #endregion tune-tests
