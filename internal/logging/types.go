package logging

import "time"

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	VersionID    string
	Actor        string
	TriggerType  string // "retrain" | "rollback"
	SnapshotJSON string
	Decision     string // "commit" | "reject" | "no_op"
	Reason       string
	CreatedAt    time.Time
}

// #endregion provenance-entry

// #region tuner-record
// TunerRecord captures the complete inputs and outputs of one tuner decision.
// Serialized as JSON into provenance_log.snapshot_json so every weight change
// can be traced back to the aggregates that caused it.
type TunerRecord struct {
	TotalFeedback     int            `json:"total_feedback"`
	FalsePositiveRate float64        `json:"false_positive_rate"`
	ConfirmedRate     float64        `json:"confirmed_rate"`
	AttributedFP      map[string]int `json:"attributed_false_positives"`
	LearningActive    bool           `json:"learning_active"`

	OldWeights      [3]float64 `json:"old_weights"`
	NewWeights      [3]float64 `json:"new_weights"`
	OldAdjustment   float64    `json:"old_adjustment"`
	NewAdjustment   float64    `json:"new_adjustment"`
	PenalizedLayers []string   `json:"penalized_layers,omitempty"`

	// Gate output, empty when the tuner returned no_op before gating.
	GateAction  string   `json:"gate_action,omitempty"`
	GateVetoes  []string `json:"gate_vetoes,omitempty"`
	WeightDelta float64  `json:"weight_delta"`
}

// #endregion tuner-record

// #region logger-config
// Config selects zap output.
type Config struct {
	Level  string // debug | info | warn | error
	Format string // json | console
}

// DefaultConfig returns JSON output at info level.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

// #endregion logger-config
