package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/danielpatrickdp/adaptive-detect/internal/analyzer"
	"github.com/danielpatrickdp/adaptive-detect/internal/fusion"
	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

// #region fakes

// leakyProvider ignores excludeOwner so the orchestrator's own filter is tested.
type leakyProvider struct {
	refs  []analyzer.Document
	users []analyzer.Document
	err   error
}

func (p *leakyProvider) References(ctx context.Context) ([]analyzer.Document, error) {
	return p.refs, p.err
}

func (p *leakyProvider) UserDocuments(ctx context.Context, excludeOwner string) ([]analyzer.Document, error) {
	return p.users, p.err
}

// tableAnalyzer returns the same fixed value on every weighted layer of a doc.
type tableAnalyzer struct {
	scores map[string]float64
	fail   string
}

func (a *tableAnalyzer) Score(ctx context.Context, sub analyzer.Submission, doc analyzer.Document) ([]layer.Score, error) {
	if doc.DocID == a.fail {
		return nil, errors.New("analyzer unavailable")
	}
	return []layer.Score{
		{Layer: layer.Semantic, Value: a.scores[doc.DocID]},
		{Layer: layer.Stylometry, Value: a.scores[doc.DocID]},
		{Layer: layer.CrossLang, Value: a.scores[doc.DocID]},
	}, nil
}

func testLive() *state.Live {
	ws := state.DefaultWeights()
	ws.VersionID = "v-test"
	return state.NewLive(ws)
}

// #endregion

// #region ranking

func TestDetectTieOrdering(t *testing.T) {
	p := &leakyProvider{refs: []analyzer.Document{
		{DocID: "doc-c", Text: "c"},
		{DocID: "doc-b", Text: "b"},
		{DocID: "doc-a", Text: "a"},
		{DocID: "doc-d", Text: "d"},
	}}
	an := &tableAnalyzer{scores: map[string]float64{"doc-a": 50, "doc-b": 50, "doc-c": 80, "doc-d": 10}}
	o := New(p, an, testLive(), DefaultConfig(), nil)

	rep, err := o.Detect(context.Background(), Request{Text: "submission", Corpus: CorpusReferences})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	want := []string{"doc-c", "doc-a", "doc-b", "doc-d"}
	for i, id := range want {
		if rep.Matches[i].DocID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, rep.Matches[i].DocID)
		}
	}
	if math.Abs(rep.MaxScore-80) > 1e-9 {
		t.Fatalf("expected max 80, got %f", rep.MaxScore)
	}
	if rep.TotalDocumentsChecked != 4 {
		t.Fatalf("expected 4 checked, got %d", rep.TotalDocumentsChecked)
	}
	if rep.WeightsVersion != "v-test" || rep.EffectiveThreshold != 40 {
		t.Fatalf("unexpected weight metadata: %s %f", rep.WeightsVersion, rep.EffectiveThreshold)
	}
	if !rep.Matches[0].IsFlagged || rep.Matches[3].IsFlagged {
		t.Fatal("flagging must follow the effective threshold")
	}
	if rep.Stylometry.TotalWords != 1 {
		t.Fatalf("expected submission profile, got %+v", rep.Stylometry)
	}
}

func TestRankStable(t *testing.T) {
	rs := []fusion.Result{{DocID: "z", FusedScore: 1}, {DocID: "a", FusedScore: 1}, {DocID: "m", FusedScore: 2}}
	Rank(rs)
	if rs[0].DocID != "m" || rs[1].DocID != "a" || rs[2].DocID != "z" {
		t.Fatalf("unexpected order: %+v", rs)
	}
}

// #endregion

// #region self-exclusion

func TestDetectCrossUserExcludesRequester(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	owners := []string{"alice@uni.edu", "ALICE@uni.edu", " alice@uni.edu ", "bob@uni.edu", "carol@uni.edu"}

	for round := 0; round < 50; round++ {
		p := &leakyProvider{}
		an := &tableAnalyzer{scores: map[string]float64{}}
		n := rng.Intn(12)
		others := 0
		for i := 0; i < n; i++ {
			owner := owners[rng.Intn(len(owners))]
			id := fmt.Sprintf("u-%d-%d", round, i)
			p.users = append(p.users, analyzer.Document{DocID: id, Owner: owner, Text: "essay"})
			an.scores[id] = float64(rng.Intn(101))
			if strings.TrimSpace(strings.ToLower(owner)) != "alice@uni.edu" {
				others++
			}
		}

		o := New(p, an, testLive(), Config{Concurrency: 3}, nil)
		rep, err := o.Detect(context.Background(), Request{Text: "my essay", Requester: "Alice@Uni.edu", Corpus: CorpusCrossUser})
		if err != nil {
			t.Fatalf("round %d: Detect: %v", round, err)
		}
		if rep.TotalDocumentsChecked != others || len(rep.Matches) != others {
			t.Fatalf("round %d: expected %d candidates, got %d", round, others, len(rep.Matches))
		}
		for _, m := range rep.Matches {
			for _, d := range p.users {
				if d.DocID == m.DocID && strings.EqualFold(strings.TrimSpace(d.Owner), "alice@uni.edu") {
					t.Fatalf("round %d: requester's own document %s returned", round, m.DocID)
				}
			}
		}
	}
}

func TestDetectCrossUserRequiresRequester(t *testing.T) {
	o := New(&leakyProvider{}, &tableAnalyzer{}, testLive(), DefaultConfig(), nil)
	_, err := o.Detect(context.Background(), Request{Text: "x", Corpus: CorpusCrossUser})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

// #endregion

// #region edge-cases

func TestDetectEmptyCorpus(t *testing.T) {
	o := New(&leakyProvider{}, &tableAnalyzer{}, testLive(), DefaultConfig(), nil)
	rep, err := o.Detect(context.Background(), Request{Text: "anything", Corpus: CorpusReferences})
	if err != nil {
		t.Fatalf("empty corpus must not error: %v", err)
	}
	if rep.MaxScore != 0 || len(rep.Matches) != 0 || rep.TotalDocumentsChecked != 0 {
		t.Fatalf("expected empty report, got %+v", rep)
	}
	if rep.Matches == nil {
		t.Fatal("matches should be an empty slice, not nil")
	}
}

func TestDetectInvalidInput(t *testing.T) {
	o := New(&leakyProvider{}, &tableAnalyzer{}, testLive(), DefaultConfig(), nil)
	cases := []Request{
		{Text: "", Corpus: CorpusReferences},
		{Text: "   \n", Corpus: CorpusReferences},
		{Text: "x", Corpus: "everything"},
	}
	for _, req := range cases {
		if _, err := o.Detect(context.Background(), req); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", req, err)
		}
	}
}

func TestDetectAnalyzerFailure(t *testing.T) {
	p := &leakyProvider{refs: []analyzer.Document{{DocID: "ok"}, {DocID: "broken"}}}
	an := &tableAnalyzer{scores: map[string]float64{"ok": 10}, fail: "broken"}
	o := New(p, an, testLive(), DefaultConfig(), nil)

	if _, err := o.Detect(context.Background(), Request{Text: "x", Corpus: CorpusReferences}); err == nil {
		t.Fatal("expected analyzer failure to fail the request")
	}
}

func TestDetectProviderFailure(t *testing.T) {
	o := New(&leakyProvider{err: errors.New("db closed")}, &tableAnalyzer{}, testLive(), DefaultConfig(), nil)
	if _, err := o.Detect(context.Background(), Request{Text: "x", Corpus: CorpusReferences}); err == nil {
		t.Fatal("expected provider failure to fail the request")
	}
}

func TestDetectUsesPublishedWeights(t *testing.T) {
	live := testLive()
	p := &leakyProvider{refs: []analyzer.Document{{DocID: "d"}}}
	an := &tableAnalyzer{scores: map[string]float64{"d": 45}}
	o := New(p, an, live, DefaultConfig(), nil)

	rep, _ := o.Detect(context.Background(), Request{Text: "x", Corpus: CorpusReferences})
	if !rep.Matches[0].IsFlagged {
		t.Fatal("45 should be flagged at threshold 40")
	}

	next := live.Load()
	next.VersionID = "v-next"
	next.ThresholdAdjustment = 10
	live.Publish(next)

	rep, _ = o.Detect(context.Background(), Request{Text: "x", Corpus: CorpusReferences})
	if rep.Matches[0].IsFlagged || rep.WeightsVersion != "v-next" {
		t.Fatalf("expected new threshold 50 from v-next, got %+v", rep)
	}
}

func TestSnippet(t *testing.T) {
	if got := Snippet("short", 200); got != "short" {
		t.Fatalf("unexpected snippet %q", got)
	}
	long := strings.Repeat("é", 250)
	got := Snippet(long, 200)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != 203 {
		t.Fatalf("expected 200 runes plus ellipsis, got %d runes", len([]rune(got)))
	}
}

// #endregion
