package tuner

import (
	"errors"

	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

var (
	// ErrPermission is returned when the actor may not retrain or roll back.
	ErrPermission = errors.New("permission denied")
	// ErrRetrainInProgress is returned when another retrain or rollback holds the lock.
	ErrRetrainInProgress = errors.New("retrain in progress")
	// ErrGateRejected is returned when the proposed state fails the commit gate.
	ErrGateRejected = errors.New("proposed weights rejected by gate")
)

// #region decision
// Decision records what the tuner decided.
type Decision struct {
	Action string // "commit" | "reject" | "no_op"
	Reason string
}

// #endregion decision

// #region metrics
// Metrics captures telemetry from one tuning pass.
type Metrics struct {
	FPShares        map[layer.Layer]float64
	PenalizedLayers []layer.Layer
	FreedMass       float64
	WeightDelta     float64
	ThresholdStep   float64 // signed change applied to threshold_adjustment
}

// #endregion metrics

// #region config
// Config holds the fixed constants of the tuning arithmetic.
type Config struct {
	LearningRate      float64 // weight removed from a penalized layer per retrain
	ShareMargin       float64 // FP share must exceed weight by more than this
	MinWeight         float64 // no layer drops below this
	FPRateUpper       float64 // fp_rate above this raises the threshold
	FPRateLow         float64 // fp_rate at or below this allows lowering it
	ConfirmedRateHigh float64 // confirmed_rate at or above this allows lowering it
	ThresholdStep     float64
	AdjustmentMin     float64
	AdjustmentMax     float64
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		LearningRate:      0.05,
		ShareMargin:       0.05,
		MinWeight:         0.05,
		FPRateUpper:       30,
		FPRateLow:         15,
		ConfirmedRateHigh: 60,
		ThresholdStep:     2.5,
		AdjustmentMin:     -15,
		AdjustmentMax:     15,
	}
}

// #endregion config

// #region result
// Result bundles everything returned by Tune and Retrain.
type Result struct {
	NewState state.WeightState
	Decision Decision
	Metrics  Metrics
}

// #endregion result
