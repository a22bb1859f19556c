package analytics

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/adaptive-detect/internal/feedback"
	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
)

// #region source
// Source yields a consistent tally of the feedback log.
type Source interface {
	Tally(ctx context.Context) (*feedback.Tally, error)
}

// #endregion source

// #region aggregator
// Aggregator computes snapshots on demand from a Source.
type Aggregator struct {
	src        Source
	minSamples int
}

// NewAggregator returns an Aggregator gating learning at minSamples records.
// A non-positive minSamples selects DefaultMinSamples.
func NewAggregator(src Source, minSamples int) *Aggregator {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &Aggregator{src: src, minSamples: minSamples}
}

// MinSamples returns the learning gate.
func (a *Aggregator) MinSamples() int { return a.minSamples }

// Summarize reads the log once and derives a Snapshot from it.
func (a *Aggregator) Summarize(ctx context.Context) (Snapshot, error) {
	t, err := a.src.Tally(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("summarize: %w", err)
	}
	return FromTally(t, a.minSamples), nil
}

// #endregion aggregator

// #region from-tally
// FromTally is the pure core of Summarize. Every ratio is 0 when its denominator is 0.
func FromTally(t *feedback.Tally, minSamples int) Snapshot {
	if t == nil {
		t = feedback.NewTally()
	}
	s := Snapshot{
		TotalFeedback:       t.Total,
		FalsePositives:      t.FalsePositives,
		ConfirmedPlagiarism: t.Confirmed,
		InstructorReviews:   t.InstructorReviews,
		FalsePositiveRate:   percent(t.FalsePositives, t.Total),
		ConfirmedRate:       percent(t.Confirmed, t.Total),
		AverageSeverity:     mean(float64(t.SeveritySum), t.Total),
		AvgFPScore:          mean(t.FPScoreSum, t.FalsePositives),
		AvgConfirmedScore:   mean(t.ConfirmedScoreSum, t.Confirmed),
		FeedbackByLayer:     make(map[string]int, len(t.ByLayer)),
		LayerStatistics:     make(map[string]LayerStat, len(layer.All)),
		LearningActive:      t.Total >= minSamples,
		FeedbackNeeded:      max(0, minSamples-t.Total),
		MinSamples:          minSamples,
	}

	for key, lt := range t.ByLayer {
		s.FeedbackByLayer[key] = lt.Total
	}
	for _, l := range layer.All {
		lt := t.ByLayer[string(l)]
		acc := 50.0
		if n := lt.FalsePositives + lt.Confirmed; n > 0 {
			acc = percent(lt.Confirmed, n)
		}
		s.LayerStatistics[string(l)] = LayerStat{
			FalsePositives: lt.FalsePositives,
			Confirmed:      lt.Confirmed,
			Total:          lt.Total,
			Accuracy:       acc,
		}
	}
	for _, r := range t.Ranges {
		s.ScoreRangeAnalysis = append(s.ScoreRangeAnalysis, RangeStat{
			Range:          fmt.Sprintf("%g-%g", r.Low, r.High),
			FalsePositives: r.FalsePositives,
			Confirmed:      r.Confirmed,
			FPRate:         percent(r.FalsePositives, r.FalsePositives+r.Confirmed),
		})
	}
	return s
}

// AttributedFalsePositives returns the false-positive count per weighted layer.
func (s Snapshot) AttributedFalsePositives() map[layer.Layer]int {
	out := make(map[layer.Layer]int, len(layer.Weighted))
	for _, l := range layer.Weighted {
		out[l] = s.LayerStatistics[string(l)].FalsePositives
	}
	return out
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// #endregion from-tally
