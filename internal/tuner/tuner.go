package tuner

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-detect/internal/analytics"
	"github.com/danielpatrickdp/adaptive-detect/internal/auth"
	"github.com/danielpatrickdp/adaptive-detect/internal/gate"
	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
	"github.com/danielpatrickdp/adaptive-detect/internal/logging"
	"github.com/danielpatrickdp/adaptive-detect/internal/metrics"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

// #region interfaces
// VersionStore persists weight versions. *state.Store satisfies it.
type VersionStore interface {
	CommitState(rec state.WeightState) error
	Rollback(versionID string) (state.WeightState, error)
	DB() *sql.DB
}

// Summarizer yields the current feedback aggregate.
type Summarizer interface {
	Summarize(ctx context.Context) (analytics.Snapshot, error)
}

// #endregion interfaces

// #region tuner
// Tuner is the only writer of the weight state. Retrain and Rollback are
// serialized by one mutex; a second caller is rejected, not queued.
type Tuner struct {
	mu     sync.Mutex
	store  VersionStore
	live   *state.Live
	agg    Summarizer
	gate   *gate.Gate
	cfg    Config
	logger *zap.Logger
}

// New creates a Tuner publishing to live.
func New(store VersionStore, live *state.Live, agg Summarizer, g *gate.Gate, cfg Config, logger *zap.Logger) *Tuner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tuner{store: store, live: live, agg: agg, gate: g, cfg: cfg, logger: logger}
}

// Current returns the published weight state.
func (t *Tuner) Current() state.WeightState {
	return t.live.Load()
}

// #endregion tuner

// #region retrain
// Retrain folds the latest feedback aggregate into a new weight version.
func (t *Tuner) Retrain(ctx context.Context, actor auth.Identity) (Result, error) {
	if !actor.Can(auth.CapRetrain) {
		t.logger.Warn("retrain denied", zap.String("actor", actor.Email), zap.String("role", string(actor.Role)))
		return Result{}, fmt.Errorf("%w: role %q cannot retrain", ErrPermission, actor.Role)
	}
	if !t.mu.TryLock() {
		return Result{}, ErrRetrainInProgress
	}
	defer t.mu.Unlock()

	old := t.live.Load()
	snap, err := t.agg.Summarize(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("retrain: %w", err)
	}

	res := Tune(old, snap, t.cfg)
	rec := tunerRecord(old, res, snap)

	if res.Decision.Action == "no_op" {
		t.record(ctx, actor, "retrain", old.VersionID, rec, res.Decision)
		return res, nil
	}

	gd := t.gate.Evaluate(old, res.NewState)
	rec.GateAction = gd.Action
	rec.WeightDelta = gd.WeightDelta
	for _, v := range gd.VetoSignals {
		rec.GateVetoes = append(rec.GateVetoes, v.Reason)
	}
	if gd.Vetoed {
		res.Decision = Decision{Action: "reject", Reason: gd.Reason}
		res.NewState = old
		t.record(ctx, actor, "retrain", old.VersionID, rec, res.Decision)
		return res, fmt.Errorf("%w: %s", ErrGateRejected, gd.Reason)
	}

	res.NewState.MetricsJSON = logging.EncodeRecord(rec)
	if err := t.store.CommitState(res.NewState); err != nil {
		return Result{}, fmt.Errorf("commit weights: %w", err)
	}
	t.publish(res.NewState)
	t.record(ctx, actor, "retrain", res.NewState.VersionID, rec, res.Decision)

	t.logger.Info("weights retrained",
		zap.String("version_id", res.NewState.VersionID),
		zap.String("parent_id", old.VersionID),
		zap.String("actor", actor.Email),
		zap.String("reason", res.Decision.Reason),
		zap.Float64("effective_threshold", res.NewState.EffectiveThreshold()),
	)
	return res, nil
}

// #endregion retrain

// #region rollback
// Rollback re-activates a prior version. Admin only.
func (t *Tuner) Rollback(ctx context.Context, actor auth.Identity, versionID string) (state.WeightState, error) {
	if !actor.Can(auth.CapRollback) {
		return state.WeightState{}, fmt.Errorf("%w: role %q cannot roll back", ErrPermission, actor.Role)
	}
	if !t.mu.TryLock() {
		return state.WeightState{}, ErrRetrainInProgress
	}
	defer t.mu.Unlock()

	old := t.live.Load()
	target, err := t.store.Rollback(versionID)
	if err != nil {
		return state.WeightState{}, err
	}
	t.publish(target)

	rec := logging.TunerRecord{
		OldWeights:    weightsOf(old),
		NewWeights:    weightsOf(target),
		OldAdjustment: old.ThresholdAdjustment,
		NewAdjustment: target.ThresholdAdjustment,
		WeightDelta:   gate.WeightDelta(old, target),
	}
	t.record(ctx, actor, "rollback", target.VersionID, rec, Decision{
		Action: "commit",
		Reason: fmt.Sprintf("rollback from %s", old.VersionID),
	})
	t.logger.Info("weights rolled back",
		zap.String("version_id", target.VersionID),
		zap.String("from", old.VersionID),
		zap.String("actor", actor.Email),
	)
	return target, nil
}

// #endregion rollback

// #region helpers
func (t *Tuner) publish(ws state.WeightState) {
	t.live.Publish(ws)
	metrics.ObserveWeights(ws.SemanticWeight, ws.StylometryWeight, ws.CrossLangWeight, ws.EffectiveThreshold())
}

// record writes provenance. A failed provenance write is logged, not returned,
// because the weight change it describes has already been committed.
func (t *Tuner) record(ctx context.Context, actor auth.Identity, trigger, versionID string, rec logging.TunerRecord, d Decision) {
	metrics.TunerDecisions.WithLabelValues(trigger, d.Action).Inc()
	err := logging.LogDecision(context.WithoutCancel(ctx), t.store.DB(), logging.ProvenanceEntry{
		VersionID:    versionID,
		Actor:        actor.Email,
		TriggerType:  trigger,
		SnapshotJSON: logging.EncodeRecord(rec),
		Decision:     d.Action,
		Reason:       d.Reason,
	})
	if err != nil {
		t.logger.Error("provenance write failed", zap.Error(err), zap.String("version_id", versionID))
	}
}

func tunerRecord(old state.WeightState, res Result, snap analytics.Snapshot) logging.TunerRecord {
	attr := make(map[string]int, len(layer.Weighted))
	for l, n := range snap.AttributedFalsePositives() {
		attr[string(l)] = n
	}
	var penalized []string
	for _, l := range res.Metrics.PenalizedLayers {
		penalized = append(penalized, string(l))
	}
	return logging.TunerRecord{
		TotalFeedback:     snap.TotalFeedback,
		FalsePositiveRate: snap.FalsePositiveRate,
		ConfirmedRate:     snap.ConfirmedRate,
		AttributedFP:      attr,
		LearningActive:    snap.LearningActive,
		OldWeights:        weightsOf(old),
		NewWeights:        weightsOf(res.NewState),
		OldAdjustment:     old.ThresholdAdjustment,
		NewAdjustment:     res.NewState.ThresholdAdjustment,
		PenalizedLayers:   penalized,
		WeightDelta:       res.Metrics.WeightDelta,
	}
}

func weightsOf(ws state.WeightState) [3]float64 {
	return [3]float64{ws.SemanticWeight, ws.StylometryWeight, ws.CrossLangWeight}
}

// #endregion helpers
