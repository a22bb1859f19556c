package state

import (
	"encoding/json"
	"math"
	"time"

	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
)

// #region weight-state
// WeightState is one immutable version of the fusion weights and detection threshold.
// Readers always hold a value copy; the tuner produces a new version instead of
// mutating an existing one.
type WeightState struct {
	VersionID              string
	ParentID               string
	SemanticWeight         float64
	StylometryWeight       float64
	CrossLangWeight        float64
	BaseThreshold          float64
	ThresholdAdjustment    float64
	TotalFeedbackProcessed int
	CreatedAt              time.Time
	MetricsJSON            string
}

// DefaultWeights returns the initial weight vector and threshold.
func DefaultWeights() WeightState {
	return WeightState{
		SemanticWeight:      0.5,
		StylometryWeight:    0.3,
		CrossLangWeight:     0.2,
		BaseThreshold:       40.0,
		ThresholdAdjustment: 0,
	}
}

// EffectiveThreshold is base + adjustment, clamped to [0, 100].
func (w WeightState) EffectiveThreshold() float64 {
	return math.Max(0, math.Min(100, w.BaseThreshold+w.ThresholdAdjustment))
}

// Weight returns the fusion weight of l. Layers without a weight field return 0.
func (w WeightState) Weight(l layer.Layer) float64 {
	switch l {
	case layer.Semantic:
		return w.SemanticWeight
	case layer.Stylometry:
		return w.StylometryWeight
	case layer.CrossLang:
		return w.CrossLangWeight
	}
	return 0
}

// WithWeight returns a copy of w with the weight of l replaced.
func (w WeightState) WithWeight(l layer.Layer, v float64) WeightState {
	switch l {
	case layer.Semantic:
		w.SemanticWeight = v
	case layer.Stylometry:
		w.StylometryWeight = v
	case layer.CrossLang:
		w.CrossLangWeight = v
	}
	return w
}

// WeightSum returns the sum of the weighted layers.
func (w WeightState) WeightSum() float64 {
	return w.SemanticWeight + w.StylometryWeight + w.CrossLangWeight
}

// #endregion weight-state

// #region json
type weightStateJSON struct {
	VersionID              string    `json:"version_id"`
	ParentID               string    `json:"parent_id,omitempty"`
	SemanticWeight         float64   `json:"semantic_weight"`
	StylometryWeight       float64   `json:"stylometry_weight"`
	CrossLangWeight        float64   `json:"cross_lang_weight"`
	BaseThreshold          float64   `json:"base_threshold"`
	ThresholdAdjustment    float64   `json:"threshold_adjustment"`
	EffectiveThreshold     float64   `json:"effective_threshold"`
	TotalFeedbackProcessed int       `json:"total_feedback_processed"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// MarshalJSON renders the wire shape used by GET /learning/weights.
func (w WeightState) MarshalJSON() ([]byte, error) {
	return json.Marshal(weightStateJSON{
		VersionID:              w.VersionID,
		ParentID:               w.ParentID,
		SemanticWeight:         w.SemanticWeight,
		StylometryWeight:       w.StylometryWeight,
		CrossLangWeight:        w.CrossLangWeight,
		BaseThreshold:          w.BaseThreshold,
		ThresholdAdjustment:    w.ThresholdAdjustment,
		EffectiveThreshold:     w.EffectiveThreshold(),
		TotalFeedbackProcessed: w.TotalFeedbackProcessed,
		UpdatedAt:              w.CreatedAt,
	})
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (w *WeightState) UnmarshalJSON(b []byte) error {
	var j weightStateJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*w = WeightState{
		VersionID:              j.VersionID,
		ParentID:               j.ParentID,
		SemanticWeight:         j.SemanticWeight,
		StylometryWeight:       j.StylometryWeight,
		CrossLangWeight:        j.CrossLangWeight,
		BaseThreshold:          j.BaseThreshold,
		ThresholdAdjustment:    j.ThresholdAdjustment,
		TotalFeedbackProcessed: j.TotalFeedbackProcessed,
		CreatedAt:              j.UpdatedAt,
	}
	return nil
}

// #endregion json

// #region provenance-tag
// ProvenanceTag links a weight version to the decision that produced it.
type ProvenanceTag struct {
	VersionID    string
	Actor        string
	TriggerType  string // "retrain" | "rollback"
	SnapshotJSON string
	Decision     string // "commit" | "reject" | "no_op"
	Reason       string
	CreatedAt    time.Time
}

// #endregion provenance-tag

// #region version-with-provenance
// VersionWithProvenance pairs a weight version with its latest provenance row.
type VersionWithProvenance struct {
	WeightState
	Actor    string
	Decision string
	Reason   string
}

// #endregion version-with-provenance
