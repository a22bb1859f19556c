package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
)

// #region helpers
func tempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedback.db")
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func intPtr(v int) *int { return &v }

func validInput() Input {
	return Input{
		DocID:         "ref-1",
		SubmittedText: "the quick brown fox",
		MatchScore:    72.4,
		FeedbackType:  Confirmed,
		SubmittedBy:   "Prof@Uni.edu",
	}
}

// #endregion helpers

// #region record-tests
func TestRecordAssignsIDAndDefaults(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	rec, err := s.Record(ctx, validInput())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.ID == "" || rec.Seq == 0 {
		t.Fatalf("expected id and seq, got %q %d", rec.ID, rec.Seq)
	}
	if rec.Timestamp.IsZero() {
		t.Fatal("expected timestamp")
	}
	if rec.Severity != 72 {
		t.Fatalf("expected default severity 72, got %d", rec.Severity)
	}
	if rec.SubmittedTextHash != HashText("the quick brown fox") {
		t.Fatalf("unexpected hash %s", rec.SubmittedTextHash)
	}
	if rec.SubmittedBy != "prof@uni.edu" {
		t.Fatalf("expected normalized submitter, got %s", rec.SubmittedBy)
	}
}

func TestRecordKeepsSeverityAndOverrideIndependent(t *testing.T) {
	s := tempStore(t)
	in := validInput()
	in.Severity = intPtr(10)
	in.ConfidenceOverride = intPtr(95)
	in.DetectionLayer = "Stylometry"

	rec, err := s.Record(context.Background(), in)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.Severity != 10 || rec.ConfidenceOverride == nil || *rec.ConfidenceOverride != 95 {
		t.Fatalf("annotations altered: severity=%d override=%v", rec.Severity, rec.ConfidenceOverride)
	}
	if rec.DetectionLayer != layer.Stylometry {
		t.Fatalf("expected stylometry, got %s", rec.DetectionLayer)
	}

	got, err := s.List(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got[0].ConfidenceOverride == nil || *got[0].ConfidenceOverride != 95 || got[0].Severity != 10 {
		t.Fatalf("round trip lost annotations: %+v", got[0])
	}
}

func TestRecordValidation(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Input)
	}{
		{"unknown type", func(in *Input) { in.FeedbackType = "maybe" }},
		{"score below range", func(in *Input) { in.MatchScore = -0.1 }},
		{"score above range", func(in *Input) { in.MatchScore = 100.5 }},
		{"severity out of range", func(in *Input) { in.Severity = intPtr(101) }},
		{"override out of range", func(in *Input) { in.ConfidenceOverride = intPtr(-1) }},
		{"unknown layer", func(in *Input) { in.DetectionLayer = "vibes" }},
		{"missing doc", func(in *Input) { in.DocID = "  " }},
	}

	s := tempStore(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mut(&in)
			_, err := s.Record(context.Background(), in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("rejected input was recorded: count=%d", n)
	}
}

func TestRecordUnknownDocAccepted(t *testing.T) {
	s := tempStore(t)
	in := validInput()
	in.DocID = "deleted-long-ago"
	if _, err := s.Record(context.Background(), in); err != nil {
		t.Fatalf("feedback on unknown doc should be accepted: %v", err)
	}
}

func TestRecordConcurrent(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := validInput()
			in.DocID = fmt.Sprintf("doc-%d", i)
			if _, err := s.Record(ctx, in); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Record: %v", err)
	}

	n, _ := s.Count(ctx)
	if n != 40 {
		t.Fatalf("expected 40 records, got %d", n)
	}
}

// #endregion record-tests

// #region list-tests
func TestListNewestFirstWithPagination(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		in := validInput()
		in.DocID = fmt.Sprintf("doc-%d", i)
		if _, err := s.Record(ctx, in); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	page, err := s.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 2 || page[0].DocID != "doc-4" || page[1].DocID != "doc-3" {
		t.Fatalf("unexpected first page: %+v", page)
	}

	page, _ = s.List(ctx, 2, 4)
	if len(page) != 1 || page[0].DocID != "doc-0" {
		t.Fatalf("unexpected last page: %+v", page)
	}

	page, _ = s.List(ctx, 2, 10)
	if len(page) != 0 {
		t.Fatalf("expected empty page past the end, got %d", len(page))
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{0: 20, -5: 20, 1: 1, 50: 50, 200: 200, 10000: 200}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

// #endregion list-tests

// #region tally-tests
func TestTallyEmpty(t *testing.T) {
	s := tempStore(t)
	tally, err := s.Tally(context.Background())
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if tally.Total != 0 || tally.FalsePositives != 0 {
		t.Fatalf("expected empty tally, got %+v", tally)
	}
	if _, ok := tally.ByLayer[Unspecified]; !ok {
		t.Fatal("expected unspecified key present")
	}
	if len(tally.Ranges) != 4 {
		t.Fatalf("expected 4 ranges, got %d", len(tally.Ranges))
	}
}

func TestTallyCounts(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	add := func(ft Type, score float64, l string, instructor bool) {
		in := validInput()
		in.FeedbackType = ft
		in.MatchScore = score
		in.DetectionLayer = l
		in.IsInstructorReview = instructor
		if _, err := s.Record(ctx, in); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	add(FalsePositive, 45, "stylometry", false)
	add(FalsePositive, 35, "stylometry", true)
	add(Confirmed, 80, "semantic", true)
	add(Confirmed, 100, "", false)

	tally, err := s.Tally(ctx)
	if err != nil {
		t.Fatalf("Tally: %v", err)
	}
	if tally.Total != 4 || tally.FalsePositives != 2 || tally.Confirmed != 2 || tally.InstructorReviews != 2 {
		t.Fatalf("unexpected counts: %+v", tally)
	}
	if got := tally.ByLayer["stylometry"]; got.FalsePositives != 2 || got.Total != 2 {
		t.Fatalf("unexpected stylometry tally: %+v", got)
	}
	if got := tally.ByLayer[Unspecified]; got.Total != 1 {
		t.Fatalf("unexpected unspecified tally: %+v", got)
	}
	if tally.Ranges[1].FalsePositives != 2 {
		t.Fatalf("expected two FPs in 30-50, got %+v", tally.Ranges[1])
	}
	if tally.Ranges[3].Confirmed != 2 {
		t.Fatalf("expected 80 and 100 in 70-100, got %+v", tally.Ranges[3])
	}
	if tally.FPScoreSum != 80 || tally.ConfirmedScoreSum != 180 {
		t.Fatalf("unexpected score sums: fp=%f confirmed=%f", tally.FPScoreSum, tally.ConfirmedScoreSum)
	}
}

// #endregion tally-tests
