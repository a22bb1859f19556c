package replay

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/adaptive-detect/internal/feedback"
	"github.com/danielpatrickdp/adaptive-detect/internal/gate"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
	"github.com/danielpatrickdp/adaptive-detect/internal/tuner"
)

// #region fixture-types

// Fixture is the top-level YAML structure for a replay fixture.
type Fixture struct {
	Description     string                  `yaml:"description"`
	StartWeights    FixtureWeights          `yaml:"start_weights"`
	Config          FixtureConfig           `yaml:"config"`
	Feedback        []FixtureFeedback       `yaml:"feedback"`
	Checkpoints     []FixtureCheckpoint     `yaml:"checkpoints"`
	ExpectedResults []FixtureExpectedResult `yaml:"expected_results,omitempty"`
}

// FixtureWeights is the serializable start state.
type FixtureWeights struct {
	VersionID           string  `yaml:"version_id"`
	Semantic            float64 `yaml:"semantic"`
	Stylometry          float64 `yaml:"stylometry"`
	CrossLang           float64 `yaml:"cross_lang"`
	BaseThreshold       float64 `yaml:"base_threshold"`
	ThresholdAdjustment float64 `yaml:"threshold_adjustment"`
}

// FixtureFeedback is one feedback record. Missing severity defaults as in the live store.
type FixtureFeedback struct {
	DocID              string  `yaml:"doc_id"`
	MatchScore         float64 `yaml:"match_score"`
	FeedbackType       string  `yaml:"feedback_type"`
	Severity           *int    `yaml:"severity,omitempty"`
	DetectionLayer     string  `yaml:"detection_layer,omitempty"`
	ConfidenceOverride *int    `yaml:"confidence_override,omitempty"`
	SubmittedBy        string  `yaml:"submitted_by,omitempty"`
	IsInstructorReview bool    `yaml:"is_instructor_review,omitempty"`
}

// FixtureCheckpoint retrains after the first After records.
type FixtureCheckpoint struct {
	Name  string `yaml:"name"`
	After int    `yaml:"after"`
}

// FixtureExpectedResult captures the expected action per checkpoint.
type FixtureExpectedResult struct {
	Checkpoint string `yaml:"checkpoint"`
	Action     string `yaml:"action"`
}

// FixtureConfig mirrors ReplayConfig. Zero values fall back to the defaults.
type FixtureConfig struct {
	MinSamples        int     `yaml:"min_samples,omitempty"`
	LearningRate      float64 `yaml:"learning_rate,omitempty"`
	ShareMargin       float64 `yaml:"share_margin,omitempty"`
	MinWeight         float64 `yaml:"min_weight,omitempty"`
	FPRateUpper       float64 `yaml:"fp_rate_upper,omitempty"`
	FPRateLow         float64 `yaml:"fp_rate_low,omitempty"`
	ConfirmedRateHigh float64 `yaml:"confirmed_rate_high,omitempty"`
	ThresholdStep     float64 `yaml:"threshold_step,omitempty"`
	MaxWeightDelta    float64 `yaml:"max_weight_delta,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Write encodes the fixture as YAML.
func (f *Fixture) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return enc.Close()
}

// ToWeightState converts the start weights to a domain WeightState.
func (w FixtureWeights) ToWeightState() state.WeightState {
	return state.WeightState{
		VersionID:           w.VersionID,
		SemanticWeight:      w.Semantic,
		StylometryWeight:    w.Stylometry,
		CrossLangWeight:     w.CrossLang,
		BaseThreshold:       w.BaseThreshold,
		ThresholdAdjustment: w.ThresholdAdjustment,
	}
}

// ToRecords validates every entry the way the live store does.
func (f *Fixture) ToRecords() ([]feedback.Record, error) {
	out := make([]feedback.Record, 0, len(f.Feedback))
	for i, fb := range f.Feedback {
		rec, err := feedback.Validate(feedback.Input{
			DocID:              fb.DocID,
			MatchScore:         fb.MatchScore,
			FeedbackType:       feedback.Type(fb.FeedbackType),
			Severity:           fb.Severity,
			DetectionLayer:     fb.DetectionLayer,
			ConfidenceOverride: fb.ConfidenceOverride,
			SubmittedBy:        fb.SubmittedBy,
			IsInstructorReview: fb.IsInstructorReview,
		})
		if err != nil {
			return nil, fmt.Errorf("feedback %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ToCheckpoints converts fixture checkpoints to domain checkpoints.
func (f *Fixture) ToCheckpoints() []Checkpoint {
	out := make([]Checkpoint, len(f.Checkpoints))
	for i, cp := range f.Checkpoints {
		out[i] = Checkpoint{Name: cp.Name, After: cp.After}
	}
	return out
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig.
func (fc FixtureConfig) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	setInt(&cfg.MinSamples, fc.MinSamples)
	setFloat(&cfg.Tuner.LearningRate, fc.LearningRate)
	setFloat(&cfg.Tuner.ShareMargin, fc.ShareMargin)
	setFloat(&cfg.Tuner.MinWeight, fc.MinWeight)
	setFloat(&cfg.Tuner.FPRateUpper, fc.FPRateUpper)
	setFloat(&cfg.Tuner.FPRateLow, fc.FPRateLow)
	setFloat(&cfg.Tuner.ConfirmedRateHigh, fc.ConfirmedRateHigh)
	setFloat(&cfg.Tuner.ThresholdStep, fc.ThresholdStep)
	setFloat(&cfg.Gate.MaxWeightDelta, fc.MaxWeightDelta)
	cfg.Gate.MinWeight = cfg.Tuner.MinWeight
	return cfg
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// #endregion fixture-loader

// #region fixture-export

// NewFixture builds a fixture from a recorded log, with a single checkpoint
// covering every record. Used by scorectl export.
func NewFixture(description string, start state.WeightState, records []feedback.Record, cfg ReplayConfig) *Fixture {
	f := &Fixture{
		Description: description,
		StartWeights: FixtureWeights{
			VersionID:           start.VersionID,
			Semantic:            start.SemanticWeight,
			Stylometry:          start.StylometryWeight,
			CrossLang:           start.CrossLangWeight,
			BaseThreshold:       start.BaseThreshold,
			ThresholdAdjustment: start.ThresholdAdjustment,
		},
		Config:      fixtureConfig(cfg.MinSamples, cfg.Tuner, cfg.Gate),
		Feedback:    make([]FixtureFeedback, 0, len(records)),
		Checkpoints: []FixtureCheckpoint{{Name: "all", After: len(records)}},
	}
	for _, r := range records {
		sev := r.Severity
		f.Feedback = append(f.Feedback, FixtureFeedback{
			DocID:              r.DocID,
			MatchScore:         r.MatchScore,
			FeedbackType:       string(r.FeedbackType),
			Severity:           &sev,
			DetectionLayer:     string(r.DetectionLayer),
			ConfidenceOverride: r.ConfidenceOverride,
			SubmittedBy:        r.SubmittedBy,
			IsInstructorReview: r.IsInstructorReview,
		})
	}
	return f
}

func fixtureConfig(minSamples int, tc tuner.Config, gc gate.GateConfig) FixtureConfig {
	return FixtureConfig{
		MinSamples:        minSamples,
		LearningRate:      tc.LearningRate,
		ShareMargin:       tc.ShareMargin,
		MinWeight:         tc.MinWeight,
		FPRateUpper:       tc.FPRateUpper,
		FPRateLow:         tc.FPRateLow,
		ConfirmedRateHigh: tc.ConfirmedRateHigh,
		ThresholdStep:     tc.ThresholdStep,
		MaxWeightDelta:    gc.MaxWeightDelta,
	}
}

// #endregion fixture-export
