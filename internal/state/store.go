package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region errors
var (
	// ErrNoActiveState is returned by GetCurrent before CreateInitialState has run.
	ErrNoActiveState = errors.New("no active weight state")
	// ErrVersionNotFound is returned when a version id does not exist.
	ErrVersionNotFound = errors.New("weight version not found")
)

// #endregion errors

// #region schema
// timeLayout is fixed-width so stored timestamps compare as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS weight_versions (
	version_id               TEXT PRIMARY KEY,
	parent_id                TEXT,
	semantic_weight          REAL NOT NULL,
	stylometry_weight        REAL NOT NULL,
	cross_lang_weight        REAL NOT NULL,
	base_threshold           REAL NOT NULL,
	threshold_adjustment     REAL NOT NULL,
	total_feedback_processed INTEGER NOT NULL DEFAULT 0,
	created_at               TEXT NOT NULL,
	metrics_json             TEXT,
	FOREIGN KEY (parent_id) REFERENCES weight_versions(version_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id    TEXT NOT NULL,
	actor         TEXT,
	trigger_type  TEXT NOT NULL,
	snapshot_json TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES weight_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_weights (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES weight_versions(version_id)
);
`

// #endregion schema

// #region store-struct
// Store manages versioned weight state in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
// WAL and busy_timeout are set per connection through the DSN so concurrent
// writers from the feedback log wait on the lock instead of failing.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func dsn(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (feedback, corpus, auth, logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region create-initial
// CreateInitialState stores the given weights as the first version and activates it.
func (s *Store) CreateInitialState(initial WeightState) (WeightState, error) {
	rec := initial
	rec.VersionID = uuid.New().String()
	rec.ParentID = ""
	rec.CreatedAt = time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return WeightState{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertVersion(tx, rec); err != nil {
		return WeightState{}, err
	}

	_, err = tx.Exec(
		`INSERT INTO active_weights (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		rec.VersionID,
	)
	if err != nil {
		return WeightState{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return WeightState{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion create-initial

// #region get-current
// GetCurrent reads the active weight version.
func (s *Store) GetCurrent() (WeightState, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_weights WHERE id = 1`).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return WeightState{}, ErrNoActiveState
	}
	if err != nil {
		return WeightState{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

// #region get-version
// GetVersion retrieves a specific weight version by ID.
func (s *Store) GetVersion(id string) (WeightState, error) {
	row := s.db.QueryRow(
		`SELECT `+versionColumns+` FROM weight_versions WHERE version_id = ?`, id,
	)
	rec, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return WeightState{}, fmt.Errorf("%w: %s", ErrVersionNotFound, id)
	}
	if err != nil {
		return WeightState{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get-version

// #region commit-state
// CommitState inserts a new version and moves the active pointer in one transaction.
func (s *Store) CommitState(rec WeightState) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertVersion(tx, rec); err != nil {
		return err
	}

	_, err = tx.Exec(`UPDATE active_weights SET version_id = ? WHERE id = 1`, rec.VersionID)
	if err != nil {
		return fmt.Errorf("update active: %w", err)
	}

	return tx.Commit()
}

// #endregion commit-state

// #region rollback
// Rollback sets the active pointer to a previous version and returns it.
func (s *Store) Rollback(targetVersionID string) (WeightState, error) {
	target, err := s.GetVersion(targetVersionID)
	if err != nil {
		return WeightState{}, err
	}

	_, err = s.db.Exec(`UPDATE active_weights SET version_id = ? WHERE id = 1`, targetVersionID)
	if err != nil {
		return WeightState{}, fmt.Errorf("rollback: %w", err)
	}
	return target, nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent weight versions, newest first by
// insertion order.
func (s *Store) ListVersions(limit int) ([]WeightState, error) {
	rows, err := s.db.Query(
		`SELECT `+versionColumns+` FROM weight_versions
		 ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []WeightState
	for rows.Next() {
		rec, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListVersionsWithProvenance returns recent versions joined with the newest
// provenance row that references each of them.
func (s *Store) ListVersionsWithProvenance(limit int) ([]VersionWithProvenance, error) {
	rows, err := s.db.Query(
		`SELECT v.version_id, v.parent_id, v.semantic_weight, v.stylometry_weight, v.cross_lang_weight,
		        v.base_threshold, v.threshold_adjustment, v.total_feedback_processed, v.created_at, v.metrics_json,
		        COALESCE(p.actor, ''), COALESCE(p.decision, ''), COALESCE(p.reason, '')
		 FROM weight_versions v
		 LEFT JOIN provenance_log p ON p.id = (
		     SELECT MAX(id) FROM provenance_log WHERE version_id = v.version_id
		 )
		 ORDER BY v.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions with provenance: %w", err)
	}
	defer rows.Close()

	var out []VersionWithProvenance
	for rows.Next() {
		var vp VersionWithProvenance
		var parentID, metricsJSON sql.NullString
		var createdStr string
		if err := rows.Scan(
			&vp.VersionID, &parentID, &vp.SemanticWeight, &vp.StylometryWeight, &vp.CrossLangWeight,
			&vp.BaseThreshold, &vp.ThresholdAdjustment, &vp.TotalFeedbackProcessed, &createdStr, &metricsJSON,
			&vp.Actor, &vp.Decision, &vp.Reason,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		vp.ParentID = parentID.String
		vp.MetricsJSON = metricsJSON.String
		vp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, vp)
	}
	return out, rows.Err()
}

// ListProvenance returns the most recent provenance rows, newest first.
func (s *Store) ListProvenance(limit int) ([]ProvenanceTag, error) {
	rows, err := s.db.Query(
		`SELECT version_id, COALESCE(actor, ''), trigger_type, COALESCE(snapshot_json, ''),
		        decision, COALESCE(reason, ''), created_at
		 FROM provenance_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list provenance: %w", err)
	}
	defer rows.Close()

	var tags []ProvenanceTag
	for rows.Next() {
		var t ProvenanceTag
		var createdStr string
		if err := rows.Scan(&t.VersionID, &t.Actor, &t.TriggerType, &t.SnapshotJSON, &t.Decision, &t.Reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// #endregion list-versions

// #region row-helpers
const versionColumns = `version_id, parent_id, semantic_weight, stylometry_weight, cross_lang_weight,
	base_threshold, threshold_adjustment, total_feedback_processed, created_at, metrics_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (WeightState, error) {
	var rec WeightState
	var parentID, metricsJSON sql.NullString
	var createdStr string
	err := row.Scan(
		&rec.VersionID, &parentID, &rec.SemanticWeight, &rec.StylometryWeight, &rec.CrossLangWeight,
		&rec.BaseThreshold, &rec.ThresholdAdjustment, &rec.TotalFeedbackProcessed, &createdStr, &metricsJSON,
	)
	if err != nil {
		return WeightState{}, err
	}
	rec.ParentID = parentID.String
	rec.MetricsJSON = metricsJSON.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

func insertVersion(tx *sql.Tx, rec WeightState) error {
	var parentPtr any
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}
	var metricsPtr any
	if rec.MetricsJSON != "" {
		metricsPtr = rec.MetricsJSON
	}

	_, err := tx.Exec(
		`INSERT INTO weight_versions (version_id, parent_id, semantic_weight, stylometry_weight, cross_lang_weight,
		   base_threshold, threshold_adjustment, total_feedback_processed, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, parentPtr, rec.SemanticWeight, rec.StylometryWeight, rec.CrossLangWeight,
		rec.BaseThreshold, rec.ThresholdAdjustment, rec.TotalFeedbackProcessed,
		rec.CreatedAt.UTC().Format(timeLayout), metricsPtr,
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// #endregion row-helpers
