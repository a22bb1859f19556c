package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-detect/internal/feedback"
	"github.com/danielpatrickdp/adaptive-detect/internal/replay"
)

var (
	replayFixture string
	replayEvery   int
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a feedback log through the tuner and gate",
	Long: `Replay a feedback log through the tuner and commit gate without writing
anything. With --fixture, the YAML fixture's checkpoints are replayed and
checked against its expected_results; a mismatch exits non-zero. Without it,
the database's feedback log is replayed from the seed version.

Examples:
  scorectl replay --fixture internal/replay/testdata/stylometry_drift.yaml
  scorectl replay --db data/adaptive-detect.db --every 20`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayFixture, "fixture", "", "path to a YAML replay fixture")
	replayCmd.Flags().IntVar(&replayEvery, "every", 0, "DB mode: retrain every N records (0 retrains once at the end)")
}

func runReplay(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if replayFixture != "" {
		mismatches, err := replayFromFixture(out, replayFixture)
		if err != nil {
			return err
		}
		if mismatches > 0 {
			return fmt.Errorf("%d checkpoint(s) did not match expected results", mismatches)
		}
		return nil
	}
	return replayFromDB(cmd.Context(), out)
}

// #region fixture-mode
// replayFromFixture returns the number of checkpoints whose action differs from
// the fixture's expected_results.
func replayFromFixture(w io.Writer, path string) (int, error) {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return 0, err
	}
	recs, err := f.ToRecords()
	if err != nil {
		return 0, err
	}
	start := f.StartWeights.ToWeightState()
	results, err := replay.Replay(start, recs, f.ToCheckpoints(), f.Config.ToReplayConfig())
	if err != nil {
		return 0, err
	}

	expected := make(map[string]string, len(f.ExpectedResults))
	for _, e := range f.ExpectedResults {
		expected[e.Checkpoint] = e.Action
	}
	mismatches := 0
	for _, r := range results {
		if want, ok := expected[r.Checkpoint]; ok && want != r.Action {
			mismatches++
			fmt.Fprintf(w, "MISMATCH %s: expected %s, got %s\n", r.Checkpoint, want, r.Action)
		}
	}
	if err := report(w, results, replay.Summarize(results, start)); err != nil {
		return 0, err
	}
	return mismatches, nil
}

// #endregion fixture-mode

// #region db-mode
func replayFromDB(ctx context.Context, w io.Writer) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	start, err := rootVersion(store)
	if err != nil {
		return fmt.Errorf("find seed version: %w", err)
	}
	fb, err := feedback.NewStore(store.DB())
	if err != nil {
		return err
	}
	recs, err := fb.All(ctx)
	if err != nil {
		return err
	}

	cps := checkpointsEvery(len(recs), replayEvery)
	results, err := replay.Replay(start, recs, cps, replay.DefaultReplayConfig())
	if err != nil {
		return err
	}
	return report(w, results, replay.Summarize(results, start))
}

// checkpointsEvery places a checkpoint after every n records plus one at the end.
func checkpointsEvery(total, n int) []replay.Checkpoint {
	var cps []replay.Checkpoint
	if n > 0 {
		for after := n; after < total; after += n {
			cps = append(cps, replay.Checkpoint{Name: fmt.Sprintf("at-%d", after), After: after})
		}
	}
	return append(cps, replay.Checkpoint{Name: "final", After: total})
}

// #endregion db-mode

// #region output

type resultRow struct {
	Checkpoint string  `json:"checkpoint"`
	Feedback   int     `json:"feedback_count"`
	Action     string  `json:"action"`
	Reason     string  `json:"reason"`
	FPRate     float64 `json:"fp_rate"`
	Semantic   float64 `json:"semantic"`
	Stylometry float64 `json:"stylometry"`
	CrossLang  float64 `json:"cross_lang"`
	Threshold  float64 `json:"effective_threshold"`
	Eval       string  `json:"eval,omitempty"`
}

func report(w io.Writer, results []replay.ReplayResult, summary replay.ReplaySummary) error {
	rows := make([]resultRow, len(results))
	for i, r := range results {
		rows[i] = resultRow{
			Checkpoint: r.Checkpoint,
			Feedback:   r.FeedbackCount,
			Action:     r.Action,
			Reason:     r.Reason,
			FPRate:     r.Snapshot.FalsePositiveRate,
			Semantic:   r.State.SemanticWeight,
			Stylometry: r.State.StylometryWeight,
			CrossLang:  r.State.CrossLangWeight,
			Threshold:  r.State.EffectiveThreshold(),
		}
		if r.Eval != nil {
			rows[i].Eval = r.Eval.Reason
		}
	}
	if jsonOut {
		return printJSON(w, map[string]any{
			"results": rows,
			"summary": map[string]any{
				"checkpoints":   summary.TotalCheckpoints,
				"commits":       summary.Commits,
				"gate_rejects":  summary.GateRejects,
				"no_ops":        summary.NoOps,
				"eval_failures": summary.EvalFailures,
				"final":         summary.FinalState,
			},
		})
	}

	fmt.Fprintf(w, "%-12s  %5s  %-7s  %6s  %6s  %6s  %6s  %6s  %s\n",
		"Checkpoint", "FB", "Action", "FP%", "Sem", "Sty", "XLang", "Thresh", "Reason")
	for _, r := range rows {
		fmt.Fprintf(w, "%-12s  %5d  %-7s  %6.1f  %6.3f  %6.3f  %6.3f  %6.1f  %s\n",
			r.Checkpoint, r.Feedback, r.Action, r.FPRate, r.Semantic, r.Stylometry, r.CrossLang, r.Threshold, r.Reason)
		if r.Eval != "" {
			fmt.Fprintf(w, "%-12s  eval: %s\n", "", r.Eval)
		}
	}
	fmt.Fprintf(w, "\n%d checkpoint(s): %d commit, %d reject, %d no_op, %d eval failure(s)\n",
		summary.TotalCheckpoints, summary.Commits, summary.GateRejects, summary.NoOps, summary.EvalFailures)
	return nil
}

// #endregion output
