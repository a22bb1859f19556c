// Package orchestrator runs a submission against a corpus: it asks the
// analyzer for layer scores per document, fuses them against one weight
// snapshot, and ranks the results.
package orchestrator

// #region imports
import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/adaptive-detect/internal/analyzer"
	"github.com/danielpatrickdp/adaptive-detect/internal/fusion"
	"github.com/danielpatrickdp/adaptive-detect/internal/metrics"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

// #endregion

// #region orchestrator-struct

// Orchestrator coordinates corpus lookup, analysis and fusion for Detect.
type Orchestrator struct {
	corpus   CorpusProvider
	analyzer analyzer.Analyzer
	live     *state.Live
	cfg      Config
	logger   *zap.Logger
}

// #endregion

// #region constructor

// New creates an Orchestrator reading weights from live.
func New(corpus CorpusProvider, an analyzer.Analyzer, live *state.Live, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.SnippetLength <= 0 {
		cfg.SnippetLength = DefaultConfig().SnippetLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{corpus: corpus, analyzer: an, live: live, cfg: cfg, logger: logger}
}

// #endregion

// #region detect

// Detect scores req.Text against the selected corpus. An empty corpus is not
// an error; it yields an empty report with MaxScore 0.
func (o *Orchestrator) Detect(ctx context.Context, req Request) (Report, error) {
	start := time.Now()
	label := string(req.Corpus)
	if !req.Corpus.Valid() {
		label = "invalid"
	}

	rep, err := o.detect(ctx, req)
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.DetectRequests.WithLabelValues(label, result).Inc()
	metrics.DetectDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return rep, err
}

func (o *Orchestrator) detect(ctx context.Context, req Request) (Report, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Report{}, fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}
	if !req.Corpus.Valid() {
		return Report{}, fmt.Errorf("%w: unknown corpus %q", ErrInvalidInput, req.Corpus)
	}
	requester := normalizeOwner(req.Requester)
	if req.Corpus == CorpusCrossUser && requester == "" {
		return Report{}, fmt.Errorf("%w: cross-user detection requires a requester", ErrInvalidInput)
	}

	// one snapshot for the whole request
	ws := o.live.Load()

	docs, err := o.candidates(ctx, req.Corpus, requester)
	if err != nil {
		return Report{}, err
	}

	lang := strings.ToLower(strings.TrimSpace(req.Language))
	if lang == "" {
		lang = analyzer.DetectLanguage(req.Text)
	}
	sub := analyzer.Submission{Text: req.Text, Language: lang}
	results := make([]fusion.Result, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			scores, err := o.analyzer.Score(gctx, sub, doc)
			if err != nil {
				return fmt.Errorf("analyze %s: %w", doc.DocID, err)
			}
			r, err := fusion.Fuse(fusion.Candidate{
				DocID:       doc.DocID,
				Owner:       doc.Owner,
				LayerScores: scores,
				Snippet:     Snippet(doc.Text, o.cfg.SnippetLength),
				Language:    doc.Language,
			}, ws)
			if err != nil {
				return fmt.Errorf("fuse %s: %w", doc.DocID, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.logger.Warn("detect failed",
			zap.String("corpus", string(req.Corpus)),
			zap.Int("documents", len(docs)),
			zap.Error(err),
		)
		return Report{}, err
	}

	Rank(results)

	var maxScore float64
	var flagged int
	for _, r := range results {
		if r.FusedScore > maxScore {
			maxScore = r.FusedScore
		}
		if r.IsFlagged {
			flagged++
		}
	}
	metrics.CandidatesFlagged.Add(float64(flagged))

	o.logger.Debug("detect complete",
		zap.String("corpus", string(req.Corpus)),
		zap.Int("documents", len(docs)),
		zap.Int("flagged", flagged),
		zap.Float64("max_score", maxScore),
		zap.String("weights_version", ws.VersionID),
	)

	return Report{
		MaxScore:              maxScore,
		Matches:               results,
		Stylometry:            analyzer.Stylometry(req.Text),
		Language:              lang,
		TotalDocumentsChecked: len(docs),
		EffectiveThreshold:    ws.EffectiveThreshold(),
		WeightsVersion:        ws.VersionID,
	}, nil
}

// #endregion

// #region candidates

// candidates loads the corpus. Cross-user output is filtered again here so a
// provider that ignores excludeOwner still never returns self-matches.
func (o *Orchestrator) candidates(ctx context.Context, c Corpus, requester string) ([]analyzer.Document, error) {
	if c == CorpusReferences {
		docs, err := o.corpus.References(ctx)
		if err != nil {
			return nil, fmt.Errorf("load references: %w", err)
		}
		return docs, nil
	}

	docs, err := o.corpus.UserDocuments(ctx, requester)
	if err != nil {
		return nil, fmt.Errorf("load user documents: %w", err)
	}
	out := docs[:0:0]
	for _, d := range docs {
		if normalizeOwner(d.Owner) == requester {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// #endregion

// #region helpers

// Rank orders results by fused score descending, ties broken by doc id.
func Rank(results []fusion.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		return results[i].DocID < results[j].DocID
	})
}

// Snippet returns the first n runes of text, with "..." appended when cut.
func Snippet(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

func normalizeOwner(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// #endregion
