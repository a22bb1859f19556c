package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-detect/internal/feedback"
	"github.com/danielpatrickdp/adaptive-detect/internal/replay"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the feedback log as a replay fixture",
	Long: `Export the database's feedback log and seed weights as a YAML replay
fixture with a single checkpoint covering the whole log.

Examples:
  scorectl export --db data/adaptive-detect.db --out drift.yaml`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "output file, - for stdout")
}

func runExport(cmd *cobra.Command, _ []string) error {
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
	recs, err := fb.All(cmd.Context())
	if err != nil {
		return err
	}

	f := replay.NewFixture(fmt.Sprintf("exported from %s", dbPath), start, recs, replay.DefaultReplayConfig())

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "-" {
		file, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOut, err)
		}
		defer file.Close()
		w = file
	}
	if err := f.Write(w); err != nil {
		return err
	}
	if exportOut != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "exported %d feedback records to %s\n", len(recs), exportOut)
	}
	return nil
}
