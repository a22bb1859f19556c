package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-detect/internal/logging"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

var (
	inspectLast    int
	inspectVersion string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List weight versions with provenance",
	Long: `List the most recent weight versions, oldest first, with the decision
that produced each one.

Examples:
  scorectl inspect --last 10
  scorectl inspect --version 6f1c... --json`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "show N most recent versions")
	inspectCmd.Flags().StringVar(&inspectVersion, "version", "", "show a single version and its provenance")
}

// #region list-mode

type listRow struct {
	VersionID  string  `json:"version_id"`
	ParentID   string  `json:"parent_id,omitempty"`
	Semantic   float64 `json:"semantic"`
	Stylometry float64 `json:"stylometry"`
	CrossLang  float64 `json:"cross_lang"`
	Threshold  float64 `json:"effective_threshold"`
	Feedback   int     `json:"total_feedback_processed"`
	Actor      string  `json:"actor,omitempty"`
	Decision   string  `json:"decision,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if inspectVersion != "" {
		return runDetail(out, store, inspectVersion)
	}

	versions, err := store.ListVersionsWithProvenance(inspectLast)
	if err != nil {
		return err
	}
	active, err := store.GetCurrent()
	if err != nil {
		return err
	}
	rows := toRows(versions)
	if jsonOut {
		return printJSON(out, map[string]any{"active": active.VersionID, "versions": rows})
	}
	printTable(out, rows, active.VersionID)
	return nil
}

// toRows reverses the store's newest-first order into chronological order.
func toRows(versions []state.VersionWithProvenance) []listRow {
	rows := make([]listRow, len(versions))
	for i, v := range versions {
		rows[len(versions)-1-i] = listRow{
			VersionID:  v.VersionID,
			ParentID:   v.ParentID,
			Semantic:   v.SemanticWeight,
			Stylometry: v.StylometryWeight,
			CrossLang:  v.CrossLangWeight,
			Threshold:  v.EffectiveThreshold(),
			Feedback:   v.TotalFeedbackProcessed,
			Actor:      v.Actor,
			Decision:   v.Decision,
			Reason:     v.Reason,
			CreatedAt:  v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	return rows
}

func printTable(w io.Writer, rows []listRow, active string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no versions found")
		return
	}
	fmt.Fprintf(w, "  %-12s  %6s  %6s  %6s  %6s  %5s  %-10s  %s\n",
		"Version", "Sem", "Sty", "XLang", "Thresh", "FB", "Decision", "Time")
	fmt.Fprintf(w, "  %s\n", strings.Repeat("-", 78))
	for _, r := range rows {
		marker := " "
		if r.VersionID == active {
			marker = "*"
		}
		decision := r.Decision
		if decision == "" {
			decision = "seed"
		}
		fmt.Fprintf(w, "%s %-12s  %6.3f  %6.3f  %6.3f  %6.1f  %5d  %-10s  %s\n",
			marker, short(r.VersionID), r.Semantic, r.Stylometry, r.CrossLang, r.Threshold, r.Feedback, decision, r.CreatedAt)
	}
}

// #endregion list-mode

// #region detail-mode

type detailView struct {
	Version    state.WeightState     `json:"version"`
	Provenance []state.ProvenanceTag `json:"provenance"`
}

func runDetail(w io.Writer, store *state.Store, id string) error {
	ws, err := store.GetVersion(id)
	if err != nil {
		return err
	}
	all, err := store.ListProvenance(-1)
	if err != nil {
		return err
	}
	view := detailView{Version: ws, Provenance: []state.ProvenanceTag{}}
	for _, p := range all {
		if p.VersionID == id {
			view.Provenance = append(view.Provenance, p)
		}
	}
	if jsonOut {
		return printJSON(w, view)
	}

	fmt.Fprintf(w, "Version:    %s\n", ws.VersionID)
	fmt.Fprintf(w, "Parent:     %s\n", orDash(ws.ParentID))
	fmt.Fprintf(w, "Weights:    semantic=%.4f stylometry=%.4f cross_lang=%.4f\n",
		ws.SemanticWeight, ws.StylometryWeight, ws.CrossLangWeight)
	fmt.Fprintf(w, "Threshold:  base=%.1f adjustment=%+.1f effective=%.1f\n",
		ws.BaseThreshold, ws.ThresholdAdjustment, ws.EffectiveThreshold())
	fmt.Fprintf(w, "Feedback:   %d\n", ws.TotalFeedbackProcessed)
	fmt.Fprintf(w, "Created:    %s\n", ws.CreatedAt.Format("2006-01-02T15:04:05Z"))
	if len(view.Provenance) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nProvenance:")
	for _, p := range view.Provenance {
		fmt.Fprintf(w, "  %s  %-8s  %-7s  %-20s  %s\n",
			p.CreatedAt.Format("2006-01-02T15:04:05Z"), p.TriggerType, p.Decision, orDash(p.Actor), p.Reason)
		rec, err := logging.DecodeRecord(p.SnapshotJSON)
		if err != nil || p.SnapshotJSON == "" {
			continue
		}
		fmt.Fprintf(w, "      feedback=%d fp_rate=%.1f%% confirmed_rate=%.1f%% delta=%.4f",
			rec.TotalFeedback, rec.FalsePositiveRate, rec.ConfirmedRate, rec.WeightDelta)
		if len(rec.PenalizedLayers) > 0 {
			fmt.Fprintf(w, " penalized=%s", strings.Join(rec.PenalizedLayers, ","))
		}
		if len(rec.GateVetoes) > 0 {
			fmt.Fprintf(w, " vetoes=%s", strings.Join(rec.GateVetoes, "; "))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// #endregion detail-mode

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
