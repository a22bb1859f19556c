package analytics

// DefaultMinSamples is the feedback count at which retraining becomes active.
const DefaultMinSamples = 20

// #region snapshot
// Snapshot summarizes the feedback log at one instant. It is derived on every
// request and never persisted.
type Snapshot struct {
	TotalFeedback       int                  `json:"total_feedback"`
	FalsePositives      int                  `json:"false_positives"`
	ConfirmedPlagiarism int                  `json:"confirmed_plagiarism"`
	InstructorReviews   int                  `json:"instructor_reviews"`
	FalsePositiveRate   float64              `json:"false_positive_rate"`
	ConfirmedRate       float64              `json:"confirmed_rate"`
	AverageSeverity     float64              `json:"average_severity"`
	AvgFPScore          float64              `json:"avg_false_positive_score"`
	AvgConfirmedScore   float64              `json:"avg_confirmed_score"`
	FeedbackByLayer     map[string]int       `json:"feedback_by_layer"`
	LayerStatistics     map[string]LayerStat `json:"layer_statistics"`
	ScoreRangeAnalysis  []RangeStat          `json:"score_range_analysis"`
	LearningActive      bool                 `json:"learning_active"`
	FeedbackNeeded      int                  `json:"feedback_needed"`
	MinSamples          int                  `json:"min_samples"`
}

// LayerStat is the verdict breakdown for feedback attributed to one layer.
type LayerStat struct {
	FalsePositives int     `json:"false_positives"`
	Confirmed      int     `json:"confirmed"`
	Total          int     `json:"total"`
	Accuracy       float64 `json:"accuracy"`
}

// RangeStat is the verdict breakdown for one match-score bucket.
type RangeStat struct {
	Range          string  `json:"range"`
	FalsePositives int     `json:"false_positives"`
	Confirmed      int     `json:"confirmed"`
	FPRate         float64 `json:"fp_rate"`
}

// #endregion snapshot
