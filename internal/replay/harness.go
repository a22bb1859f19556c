// Package replay runs a recorded feedback log through the tuner and commit
// gate offline, retraining at chosen checkpoints, without touching a database.
package replay

import (
	"fmt"

	"github.com/danielpatrickdp/adaptive-detect/internal/analytics"
	"github.com/danielpatrickdp/adaptive-detect/internal/eval"
	"github.com/danielpatrickdp/adaptive-detect/internal/feedback"
	"github.com/danielpatrickdp/adaptive-detect/internal/gate"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
	"github.com/danielpatrickdp/adaptive-detect/internal/tuner"
)

// #region types
// Checkpoint triggers one retrain after the first After feedback records.
type Checkpoint struct {
	Name  string
	After int
}

// ReplayConfig bundles the aggregator, tuner, gate and eval settings for a run.
type ReplayConfig struct {
	MinSamples int
	Tuner      tuner.Config
	Gate       gate.GateConfig
	Eval       eval.EvalConfig
}

// DefaultReplayConfig returns the production settings.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		MinSamples: analytics.DefaultMinSamples,
		Tuner:      tuner.DefaultConfig(),
		Gate:       gate.DefaultGateConfig(),
		Eval:       eval.DefaultEvalConfig(),
	}
}

// ReplayResult captures the outcome of one checkpoint retrain.
type ReplayResult struct {
	Checkpoint    string
	FeedbackCount int
	Action        string // "commit" | "reject" | "no_op"
	Reason        string

	Snapshot analytics.Snapshot
	Metrics  tuner.Metrics

	// nil when the tuner decided no_op
	GateDecision *gate.GateDecision
	// set on commit only
	Eval *eval.EvalResult

	// State after this checkpoint (equals the previous one unless committed)
	State state.WeightState
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalCheckpoints int
	Commits          int
	GateRejects      int
	NoOps            int
	EvalFailures     int
	FinalState       state.WeightState
}

// #endregion types

// #region replay
// Replay folds records into a running tally and retrains at every checkpoint:
// tally → snapshot → tune → gate → commit/reject, with an eval pass over the
// folded records on every commit. Checkpoints must be
// non-decreasing and within the log.
func Replay(start state.WeightState, records []feedback.Record, checkpoints []Checkpoint, config ReplayConfig) ([]ReplayResult, error) {
	current := start
	tally := feedback.NewTally()
	gateInst := gate.NewGate(config.Gate)
	harness := eval.NewEvalHarness(config.Eval)
	results := make([]ReplayResult, 0, len(checkpoints))

	folded := 0
	for i, cp := range checkpoints {
		if cp.After < folded || cp.After > len(records) {
			return nil, fmt.Errorf("checkpoint %d (%s): after=%d outside [%d, %d]", i, cp.Name, cp.After, folded, len(records))
		}
		for ; folded < cp.After; folded++ {
			tally.Add(records[folded])
		}

		snap := analytics.FromTally(tally, config.MinSamples)
		res := tuner.Tune(current, snap, config.Tuner)
		r := ReplayResult{
			Checkpoint:    cp.Name,
			FeedbackCount: folded,
			Action:        res.Decision.Action,
			Reason:        res.Decision.Reason,
			Snapshot:      snap,
			Metrics:       res.Metrics,
			State:         current,
		}

		if res.Decision.Action == "no_op" {
			results = append(results, r)
			continue
		}

		gd := gateInst.Evaluate(current, res.NewState)
		r.GateDecision = &gd
		if gd.Vetoed {
			r.Action = "reject"
			r.Reason = gd.Reason
			results = append(results, r)
			continue
		}

		ev := harness.Run(current, res.NewState, records[:folded])
		r.Eval = &ev
		current = res.NewState
		r.State = current
		results = append(results, r)
	}
	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, start state.WeightState) ReplaySummary {
	s := ReplaySummary{
		TotalCheckpoints: len(results),
		FinalState:       start,
	}
	for _, r := range results {
		switch r.Action {
		case "commit":
			s.Commits++
		case "reject":
			s.GateRejects++
		case "no_op":
			s.NoOps++
		}
		if r.Eval != nil && !r.Eval.Passed {
			s.EvalFailures++
		}
		s.FinalState = r.State
	}
	return s
}

// #endregion replay
