package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/danielpatrickdp/adaptive-detect/internal/feedback"
	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
)

type staticSource struct {
	records []feedback.Record
	err     error
}

func (s staticSource) Tally(context.Context) (*feedback.Tally, error) {
	if s.err != nil {
		return nil, s.err
	}
	t := feedback.NewTally()
	for _, r := range s.records {
		t.Add(r)
	}
	return t, nil
}

func TestSummarizeEmptyLog(t *testing.T) {
	agg := NewAggregator(staticSource{}, 0)
	snap, err := agg.Summarize(context.Background())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if snap.TotalFeedback != 0 || snap.FalsePositiveRate != 0 || snap.LearningActive {
		t.Fatalf("unexpected empty snapshot: %+v", snap)
	}
	if snap.MinSamples != DefaultMinSamples || snap.FeedbackNeeded != DefaultMinSamples {
		t.Fatalf("expected gate %d, got min=%d needed=%d", DefaultMinSamples, snap.MinSamples, snap.FeedbackNeeded)
	}
	if snap.LayerStatistics["semantic"].Accuracy != 50 {
		t.Fatalf("expected neutral accuracy, got %f", snap.LayerStatistics["semantic"].Accuracy)
	}
}

func TestSummarizeRates(t *testing.T) {
	var recs []feedback.Record
	for i := 0; i < 20; i++ {
		recs = append(recs, feedback.Record{FeedbackType: feedback.Confirmed, MatchScore: 80, Severity: 80})
	}
	for i := 0; i < 5; i++ {
		recs = append(recs, feedback.Record{
			FeedbackType:   feedback.FalsePositive,
			MatchScore:     45,
			Severity:       20,
			DetectionLayer: layer.Stylometry,
		})
	}

	snap, err := NewAggregator(staticSource{records: recs}, 20).Summarize(context.Background())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if snap.TotalFeedback != 25 || snap.FalsePositives != 5 || snap.ConfirmedPlagiarism != 20 {
		t.Fatalf("unexpected counts: %+v", snap)
	}
	if snap.FalsePositiveRate != 20 || snap.ConfirmedRate != 80 {
		t.Fatalf("unexpected rates fp=%f confirmed=%f", snap.FalsePositiveRate, snap.ConfirmedRate)
	}
	if !snap.LearningActive || snap.FeedbackNeeded != 0 {
		t.Fatalf("expected learning active, got %+v", snap)
	}
	if snap.AverageSeverity != float64(20*80+5*20)/25 {
		t.Fatalf("unexpected average severity %f", snap.AverageSeverity)
	}
	if snap.AvgFPScore != 45 || snap.AvgConfirmedScore != 80 {
		t.Fatalf("unexpected average scores fp=%f confirmed=%f", snap.AvgFPScore, snap.AvgConfirmedScore)
	}
	if snap.FeedbackByLayer[feedback.Unspecified] != 20 || snap.FeedbackByLayer["stylometry"] != 5 {
		t.Fatalf("unexpected layer breakdown: %v", snap.FeedbackByLayer)
	}
	if snap.LayerStatistics["stylometry"].Accuracy != 0 {
		t.Fatalf("expected 0 accuracy for stylometry, got %f", snap.LayerStatistics["stylometry"].Accuracy)
	}
	if got := snap.AttributedFalsePositives(); got[layer.Stylometry] != 5 || got[layer.Semantic] != 0 {
		t.Fatalf("unexpected attributed FPs: %v", got)
	}
	if snap.ScoreRangeAnalysis[1].Range != "30-50" || snap.ScoreRangeAnalysis[1].FPRate != 100 {
		t.Fatalf("unexpected range stat: %+v", snap.ScoreRangeAnalysis[1])
	}
}

func TestSummarizeLearningGateBoundary(t *testing.T) {
	recs := make([]feedback.Record, 19)
	for i := range recs {
		recs[i] = feedback.Record{FeedbackType: feedback.Confirmed}
	}
	snap, _ := NewAggregator(staticSource{records: recs}, 20).Summarize(context.Background())
	if snap.LearningActive || snap.FeedbackNeeded != 1 {
		t.Fatalf("19 records must not activate learning: %+v", snap)
	}

	recs = append(recs, feedback.Record{FeedbackType: feedback.Confirmed})
	snap, _ = NewAggregator(staticSource{records: recs}, 20).Summarize(context.Background())
	if !snap.LearningActive {
		t.Fatal("20 records should activate learning")
	}
}

func TestSummarizeSourceError(t *testing.T) {
	boom := errors.New("disk gone")
	_, err := NewAggregator(staticSource{err: boom}, 20).Summarize(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}
