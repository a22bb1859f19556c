package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-detect/internal/feedback"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

// seedDB writes a seed version plus 20 confirmed and 5 stylometry FP records.
func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scorectl.db")
	st, err := state.NewStore(path)
	require.NoError(t, err)
	defer st.Close()

	_, err = st.CreateInitialState(state.DefaultWeights())
	require.NoError(t, err)
	fb, err := feedback.NewStore(st.DB())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_, err := fb.Record(ctx, feedback.Input{DocID: "ref-1", MatchScore: 70, FeedbackType: feedback.Confirmed, DetectionLayer: "semantic"})
		require.NoError(t, err)
	}
	for i := 0; i < 5; i++ {
		_, err := fb.Record(ctx, feedback.Input{DocID: "ref-2", MatchScore: 45, FeedbackType: feedback.FalsePositive, DetectionLayer: "stylometry"})
		require.NoError(t, err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOut = false
	replayFixture = ""
	replayEvery = 0
	inspectVersion = ""
	exportOut = "-"

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestReplayFixture(t *testing.T) {
	out, err := execute(t, "replay", "--fixture", filepath.Join("..", "..", "internal", "replay", "testdata", "stylometry_drift.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "warmup")
	assert.Contains(t, out, "1 commit, 0 reject, 1 no_op")
	assert.NotContains(t, out, "MISMATCH")
}

func TestReplayFixtureMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	data, err := os.ReadFile(filepath.Join("..", "..", "internal", "replay", "testdata", "stylometry_drift.yaml"))
	require.NoError(t, err)
	data = bytes.Replace(data, []byte("action: commit"), []byte("action: reject"), 1)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, err := execute(t, "replay", "--fixture", path)
	require.Error(t, err)
	assert.Contains(t, out, "MISMATCH drift")
}

func TestExportThenReplay(t *testing.T) {
	db := seedDB(t)
	fixture := filepath.Join(t.TempDir(), "export.yaml")

	_, err := execute(t, "--db", db, "export", "--out", fixture)
	require.NoError(t, err)

	out, err := execute(t, "replay", "--fixture", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "1 commit")
}

func TestReplayDBEvery(t *testing.T) {
	db := seedDB(t)
	out, err := execute(t, "--db", db, "replay", "--every", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "at-10")
	assert.Contains(t, out, "at-20")
	assert.Contains(t, out, "final")
	assert.Contains(t, out, "3 checkpoint(s)")
}

func TestInspect(t *testing.T) {
	db := seedDB(t)
	out, err := execute(t, "--db", db, "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "seed")

	_, err = execute(t, "--db", filepath.Join(t.TempDir(), "missing.db"), "inspect")
	require.Error(t, err)
}

func TestCheckpointsEvery(t *testing.T) {
	cps := checkpointsEvery(25, 10)
	require.Len(t, cps, 3)
	assert.Equal(t, 10, cps[0].After)
	assert.Equal(t, 20, cps[1].After)
	assert.Equal(t, 25, cps[2].After)

	cps = checkpointsEvery(25, 0)
	require.Len(t, cps, 1)
	assert.Equal(t, "final", cps[0].Name)
}
