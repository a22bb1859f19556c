package gate

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoWeightSum   VetoType = "weight_sum"
	VetoWeightRange VetoType = "weight_range"
	VetoAdjustment  VetoType = "adjustment_bounds"
	VetoThreshold   VetoType = "threshold_bounds"
	VetoDelta       VetoType = "weight_delta"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds the bounds a proposed weight state must satisfy.
type GateConfig struct {
	SumTolerance   float64 // |sum(weights) - 1| must not exceed this
	MinWeight      float64 // floor for every weighted layer
	MaxWeight      float64 // ceiling for every weighted layer
	AdjustmentMin  float64
	AdjustmentMax  float64
	MaxWeightDelta float64 // max L1 distance between old and proposed weights per commit
}

// DefaultGateConfig returns the production bounds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		SumTolerance:   1e-6,
		MinWeight:      0.05,
		MaxWeight:      1.0,
		AdjustmentMin:  -15,
		AdjustmentMax:  15,
		MaxWeightDelta: 0.25,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // "commit" | "reject"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal // non-empty if vetoed
	WeightDelta float64      // L1 distance, logged with the decision
}

// #endregion gate-decision
