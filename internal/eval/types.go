package eval

// #region eval-config
// EvalConfig holds the bounds for post-commit validation.
type EvalConfig struct {
	MinConfirmedRetained float64 // fail if fewer confirmed matches stay flagged, as a fraction
	MaxThresholdShift    float64 // fail if the effective threshold moves further than this
}

// DefaultEvalConfig returns the production bounds.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MinConfirmedRetained: 0.9,
		MaxThresholdShift:    5.0,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-commit validation.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// #endregion eval-result
