package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrIncompleteEntry is returned when an entry lacks a version, trigger or decision.
var ErrIncompleteEntry = errors.New("incomplete provenance entry")

// #region log-decision
// LogDecision appends one row to provenance_log. Empty optional fields are
// stored as NULL and a zero CreatedAt is stamped with the current time.
func LogDecision(ctx context.Context, db *sql.DB, entry ProvenanceEntry) error {
	if entry.VersionID == "" || entry.TriggerType == "" || entry.Decision == "" {
		return fmt.Errorf("%w: version=%q trigger=%q decision=%q",
			ErrIncompleteEntry, entry.VersionID, entry.TriggerType, entry.Decision)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO provenance_log (version_id, actor, trigger_type, snapshot_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.VersionID,
		nullIfEmpty(entry.Actor),
		entry.TriggerType,
		nullIfEmpty(entry.SnapshotJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision for %s: %w", entry.VersionID, err)
	}
	return nil
}

// #endregion log-decision

// #region encode-record
// EncodeRecord renders a TunerRecord for ProvenanceEntry.SnapshotJSON.
// A record that cannot be marshaled is stored as an empty snapshot.
func EncodeRecord(rec TunerRecord) string {
	b, err := json.Marshal(rec)
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodeRecord parses a snapshot written by EncodeRecord.
func DecodeRecord(raw string) (TunerRecord, error) {
	var rec TunerRecord
	if raw == "" {
		return rec, nil
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return TunerRecord{}, fmt.Errorf("decode tuner record: %w", err)
	}
	return rec, nil
}

// #endregion encode-record

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
