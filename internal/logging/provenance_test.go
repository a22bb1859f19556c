package logging

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE provenance_log (
		version_id    TEXT NOT NULL,
		actor         TEXT,
		trigger_type  TEXT NOT NULL,
		snapshot_json TEXT,
		decision      TEXT NOT NULL,
		reason        TEXT,
		created_at    TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		VersionID:    "v1",
		Actor:        "prof@uni.edu",
		TriggerType:  "retrain",
		SnapshotJSON: `{"total_feedback":25}`,
		Decision:     "commit",
		Reason:       "stylometry penalized",
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	err := LogDecision(context.Background(), db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM provenance_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var versionID, actor, decision string
	db.QueryRow("SELECT version_id, actor, decision FROM provenance_log").Scan(&versionID, &actor, &decision)
	if versionID != "v1" {
		t.Errorf("expected version_id 'v1', got %q", versionID)
	}
	if actor != "prof@uni.edu" {
		t.Errorf("expected actor 'prof@uni.edu', got %q", actor)
	}
	if decision != "commit" {
		t.Errorf("expected decision 'commit', got %q", decision)
	}
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		VersionID:   "v2",
		TriggerType: "retrain",
		Decision:    "no_op",
	}

	before := time.Now().UTC()
	err := LogDecision(context.Background(), db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM provenance_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogDecision_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		VersionID:   "v3",
		TriggerType: "rollback",
		Decision:    "reject",
		CreatedAt:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	err := LogDecision(context.Background(), db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var actor, snapshot, reason sql.NullString
	db.QueryRow("SELECT actor, snapshot_json, reason FROM provenance_log").Scan(&actor, &snapshot, &reason)
	if actor.Valid {
		t.Error("expected NULL actor for empty string")
	}
	if snapshot.Valid {
		t.Error("expected NULL snapshot_json for empty string")
	}
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}
}

func TestLogDecision_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	entry := ProvenanceEntry{
		VersionID:   "v4",
		TriggerType: "retrain",
		Decision:    "commit",
	}

	err := LogDecision(context.Background(), db, entry)
	if err == nil {
		t.Fatal("expected error on closed db")
	}
}

func TestLogDecision_RejectsIncomplete(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	tests := []ProvenanceEntry{
		{TriggerType: "retrain", Decision: "commit"},
		{VersionID: "v5", Decision: "commit"},
		{VersionID: "v5", TriggerType: "retrain"},
	}
	for _, entry := range tests {
		if err := LogDecision(context.Background(), db, entry); !errors.Is(err, ErrIncompleteEntry) {
			t.Fatalf("entry %+v: expected ErrIncompleteEntry, got %v", entry, err)
		}
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM provenance_log").Scan(&count)
	if count != 0 {
		t.Errorf("expected no rows, got %d", count)
	}
}

// #endregion log-decision-tests

// #region encode-record-tests
func TestEncodeRecord(t *testing.T) {
	rec := TunerRecord{
		TotalFeedback:   25,
		AttributedFP:    map[string]int{"stylometry": 5},
		LearningActive:  true,
		OldWeights:      [3]float64{0.5, 0.3, 0.2},
		NewWeights:      [3]float64{0.5357, 0.25, 0.2143},
		PenalizedLayers: []string{"stylometry"},
		GateAction:      "commit",
	}

	raw := EncodeRecord(rec)
	back, err := DecodeRecord(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.AttributedFP["stylometry"] != 5 || back.PenalizedLayers[0] != "stylometry" {
		t.Fatalf("unexpected decoded record: %+v", back)
	}
}

func TestDecodeRecordEmptyAndInvalid(t *testing.T) {
	rec, err := DecodeRecord("")
	if err != nil || rec.TotalFeedback != 0 {
		t.Fatalf("empty snapshot should decode to zero record, got %+v, %v", rec, err)
	}
	if _, err := DecodeRecord("{not json"); err == nil {
		t.Fatal("expected error for malformed snapshot")
	}
}

// #endregion encode-record-tests

// #region logger-tests
func TestNewLogger(t *testing.T) {
	if _, err := NewLogger(DefaultConfig()); err != nil {
		t.Fatalf("default config: %v", err)
	}
	if _, err := NewLogger(Config{Level: "debug", Format: "console"}); err != nil {
		t.Fatalf("console config: %v", err)
	}
	if _, err := NewLogger(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := NewLogger(Config{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

// #endregion logger-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	result := nullIfEmpty("")
	if result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	result := nullIfEmpty("hello")
	if result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests
