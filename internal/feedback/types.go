package feedback

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
)

// ErrValidation is returned when a feedback payload is malformed. Nothing is recorded.
var ErrValidation = errors.New("invalid feedback")

// #region feedback-type
// Type is the human verdict on a reported match.
type Type string

const (
	FalsePositive Type = "false_positive"
	Confirmed     Type = "confirmed"
)

// Valid reports whether t is a known verdict.
func (t Type) Valid() bool {
	return t == FalsePositive || t == Confirmed
}

// #endregion feedback-type

// #region input
// Input is a feedback submission before validation.
// Severity and ConfidenceOverride are independent annotations; neither overrides the other.
type Input struct {
	DocID              string  `json:"doc_id"`
	SubmittedText      string  `json:"submitted_text"`
	MatchScore         float64 `json:"match_score"`
	FeedbackType       Type    `json:"feedback_type"`
	Severity           *int    `json:"severity,omitempty"`
	DetectionLayer     string  `json:"detection_layer,omitempty"`
	ConfidenceOverride *int    `json:"confidence_override,omitempty"`
	Notes              string  `json:"notes,omitempty"`

	// Set by the caller from the authenticated identity, never from the body.
	SubmittedBy        string `json:"-"`
	IsInstructorReview bool   `json:"-"`
}

// #endregion input

// #region record
// Record is one immutable row of the feedback log.
type Record struct {
	ID                 string      `json:"id"`
	Seq                int64       `json:"seq"`
	DocID              string      `json:"doc_id"`
	SubmittedText      string      `json:"submitted_text"`
	SubmittedTextHash  string      `json:"submitted_text_hash"`
	MatchScore         float64     `json:"match_score"`
	FeedbackType       Type        `json:"feedback_type"`
	Severity           int         `json:"severity"`
	DetectionLayer     layer.Layer `json:"detection_layer,omitempty"`
	ConfidenceOverride *int        `json:"confidence_override,omitempty"`
	Notes              string      `json:"notes,omitempty"`
	SubmittedBy        string      `json:"submitted_by"`
	IsInstructorReview bool        `json:"is_instructor_review"`
	Timestamp          time.Time   `json:"timestamp"`
}

// #endregion record

// #region tally
// Unspecified is the ByLayer key for records without a layer attribution.
const Unspecified = "unspecified"

// ScoreRanges are the half-open match-score buckets used for range analysis.
// The last bucket also includes 100.
var ScoreRanges = [][2]float64{{0, 30}, {30, 50}, {50, 70}, {70, 100}}

// LayerTally counts verdicts attributed to one layer.
type LayerTally struct {
	Total          int
	FalsePositives int
	Confirmed      int
}

// RangeTally counts verdicts whose match score falls in one ScoreRanges bucket.
type RangeTally struct {
	Low, High      float64
	FalsePositives int
	Confirmed      int
}

// Tally is a linear fold over the feedback log. It holds counts only, so the
// same fold serves the live store and offline replay.
type Tally struct {
	Total             int
	FalsePositives    int
	Confirmed         int
	InstructorReviews int
	SeveritySum       int
	FPScoreSum        float64
	ConfirmedScoreSum float64
	ByLayer           map[string]LayerTally
	Ranges            []RangeTally
}

// NewTally returns an empty tally with every layer key and range bucket present.
func NewTally() *Tally {
	t := &Tally{ByLayer: make(map[string]LayerTally, len(layer.All)+1)}
	for _, l := range layer.All {
		t.ByLayer[string(l)] = LayerTally{}
	}
	t.ByLayer[Unspecified] = LayerTally{}
	for _, r := range ScoreRanges {
		t.Ranges = append(t.Ranges, RangeTally{Low: r[0], High: r[1]})
	}
	return t
}

// Add folds one record into the tally.
func (t *Tally) Add(r Record) {
	t.Total++
	t.SeveritySum += r.Severity
	if r.IsInstructorReview {
		t.InstructorReviews++
	}

	key := string(r.DetectionLayer)
	if key == "" {
		key = Unspecified
	}
	lt := t.ByLayer[key]
	lt.Total++

	fp := r.FeedbackType == FalsePositive
	if fp {
		t.FalsePositives++
		t.FPScoreSum += r.MatchScore
		lt.FalsePositives++
	} else {
		t.Confirmed++
		t.ConfirmedScoreSum += r.MatchScore
		lt.Confirmed++
	}
	t.ByLayer[key] = lt

	if i := rangeIndex(r.MatchScore); i >= 0 {
		if fp {
			t.Ranges[i].FalsePositives++
		} else {
			t.Ranges[i].Confirmed++
		}
	}
}

func rangeIndex(score float64) int {
	last := len(ScoreRanges) - 1
	for i, r := range ScoreRanges {
		if score >= r[0] && (score < r[1] || (i == last && score <= r[1])) {
			return i
		}
	}
	return -1
}

// #endregion tally
