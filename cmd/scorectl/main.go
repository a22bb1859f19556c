// Package main implements scorectl, an offline tool for inspecting weight
// history and replaying feedback logs against the tuner.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

var (
	// dbPath is the scoringd SQLite database
	dbPath  string
	jsonOut bool
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scorectl",
	Short: "Offline tooling for the adaptive scoring service",
	Long: `scorectl reads a scoringd database directly. It lists weight versions
with their provenance, exports the feedback log as a replay fixture, and
replays fixtures through the tuner and commit gate without side effects.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", envOr("SCORING_STORAGE_PATH", "data/adaptive-detect.db"), "path to the scoringd database")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON instead of a table")
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(exportCmd)
}

// #region helpers
func openStore() (*state.Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database %s: %w", dbPath, err)
	}
	return state.NewStore(dbPath)
}

// rootVersion returns the oldest version without a parent, the seed of the lineage.
func rootVersion(store *state.Store) (state.WeightState, error) {
	versions, err := store.ListVersions(-1)
	if err != nil {
		return state.WeightState{}, err
	}
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].ParentID == "" {
			return versions[i], nil
		}
	}
	return state.WeightState{}, state.ErrNoActiveState
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
