package feedback

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS feedback (
	seq                  INTEGER PRIMARY KEY AUTOINCREMENT,
	id                   TEXT NOT NULL UNIQUE,
	doc_id               TEXT NOT NULL,
	submitted_text       TEXT NOT NULL,
	submitted_text_hash  TEXT NOT NULL,
	match_score          REAL NOT NULL,
	feedback_type        TEXT NOT NULL CHECK (feedback_type IN ('false_positive', 'confirmed')),
	severity             INTEGER NOT NULL,
	detection_layer      TEXT,
	confidence_override  INTEGER,
	notes                TEXT,
	submitted_by         TEXT NOT NULL,
	is_instructor_review INTEGER NOT NULL DEFAULT 0,
	created_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_text_hash ON feedback(submitted_text_hash);
`

// #endregion schema

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// #region store
// Store is the append-only feedback log. It exposes no update or delete.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates the feedback table on db if needed.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate feedback: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// #endregion store

// #region validate
// Validate checks an input and returns the record it would produce, minus id, seq and timestamp.
func Validate(in Input) (Record, error) {
	if strings.TrimSpace(in.DocID) == "" {
		return Record{}, fmt.Errorf("%w: doc_id is required", ErrValidation)
	}
	if !in.FeedbackType.Valid() {
		return Record{}, fmt.Errorf("%w: unknown feedback_type %q", ErrValidation, in.FeedbackType)
	}
	if math.IsNaN(in.MatchScore) || in.MatchScore < 0 || in.MatchScore > 100 {
		return Record{}, fmt.Errorf("%w: match_score %v outside [0, 100]", ErrValidation, in.MatchScore)
	}

	severity := int(math.Round(in.MatchScore))
	if in.Severity != nil {
		if *in.Severity < 0 || *in.Severity > 100 {
			return Record{}, fmt.Errorf("%w: severity %d outside [0, 100]", ErrValidation, *in.Severity)
		}
		severity = *in.Severity
	}
	if in.ConfidenceOverride != nil && (*in.ConfidenceOverride < 0 || *in.ConfidenceOverride > 100) {
		return Record{}, fmt.Errorf("%w: confidence_override %d outside [0, 100]", ErrValidation, *in.ConfidenceOverride)
	}

	var l layer.Layer
	if in.DetectionLayer != "" {
		parsed, err := layer.Parse(in.DetectionLayer)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		l = parsed
	}

	return Record{
		DocID:              in.DocID,
		SubmittedText:      in.SubmittedText,
		SubmittedTextHash:  HashText(in.SubmittedText),
		MatchScore:         in.MatchScore,
		FeedbackType:       in.FeedbackType,
		Severity:           severity,
		DetectionLayer:     l,
		ConfidenceOverride: in.ConfidenceOverride,
		Notes:              in.Notes,
		SubmittedBy:        strings.ToLower(strings.TrimSpace(in.SubmittedBy)),
		IsInstructorReview: in.IsInstructorReview,
	}, nil
}

// HashText returns the hex sha256 of text, used to group feedback on the same submission.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// #endregion validate

// #region record
// Record validates in and appends it with a single INSERT.
func (s *Store) Record(ctx context.Context, in Input) (Record, error) {
	rec, err := Validate(in)
	if err != nil {
		return Record{}, err
	}
	rec.ID = uuid.New().String()
	rec.Timestamp = s.now()

	var override any
	if rec.ConfidenceOverride != nil {
		override = *rec.ConfidenceOverride
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, doc_id, submitted_text, submitted_text_hash, match_score, feedback_type,
		   severity, detection_layer, confidence_override, notes, submitted_by, is_instructor_review, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DocID, rec.SubmittedText, rec.SubmittedTextHash, rec.MatchScore, string(rec.FeedbackType),
		rec.Severity, nullIfEmpty(string(rec.DetectionLayer)), override, nullIfEmpty(rec.Notes),
		rec.SubmittedBy, rec.IsInstructorReview, rec.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert feedback: %w", err)
	}
	if rec.Seq, err = res.LastInsertId(); err != nil {
		return Record{}, fmt.Errorf("feedback seq: %w", err)
	}
	return rec, nil
}

// #endregion record

// #region list
// ClampLimit maps a requested page size onto [1, MaxListLimit]; 0 or less means the default.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

// List returns a page of the log, newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Record, error) {
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM feedback ORDER BY seq DESC LIMIT ? OFFSET ?`,
		ClampLimit(limit), offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// All returns the full log oldest first. Used by fixture export.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM feedback ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("read feedback: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list

// #region tally
// Tally folds the whole log in one SELECT, so the result matches the log at a single instant.
func (s *Store) Tally(ctx context.Context) (*Tally, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT feedback_type, match_score, severity, COALESCE(detection_layer, ''), is_instructor_review FROM feedback`,
	)
	if err != nil {
		return nil, fmt.Errorf("tally feedback: %w", err)
	}
	defer rows.Close()

	t := NewTally()
	for rows.Next() {
		var r Record
		var ft, dl string
		if err := rows.Scan(&ft, &r.MatchScore, &r.Severity, &dl, &r.IsInstructorReview); err != nil {
			return nil, fmt.Errorf("scan tally row: %w", err)
		}
		r.FeedbackType = Type(ft)
		r.DetectionLayer = layer.Layer(dl)
		t.Add(r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tally feedback: %w", err)
	}
	return t, nil
}

// Count returns the number of records in the log.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count feedback: %w", err)
	}
	return n, nil
}

// #endregion tally

// #region helpers
const recordColumns = `seq, id, doc_id, submitted_text, submitted_text_hash, match_score, feedback_type,
	severity, detection_layer, confidence_override, notes, submitted_by, is_instructor_review, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var ft, created string
	var dl, notes sql.NullString
	var override sql.NullInt64
	err := row.Scan(
		&rec.Seq, &rec.ID, &rec.DocID, &rec.SubmittedText, &rec.SubmittedTextHash, &rec.MatchScore, &ft,
		&rec.Severity, &dl, &override, &notes, &rec.SubmittedBy, &rec.IsInstructorReview, &created,
	)
	if err != nil {
		return Record{}, err
	}
	rec.FeedbackType = Type(ft)
	rec.DetectionLayer = layer.Layer(dl.String)
	rec.Notes = notes.String
	if override.Valid {
		v := int(override.Int64)
		rec.ConfidenceOverride = &v
	}
	rec.Timestamp, _ = time.Parse(time.RFC3339Nano, created)
	return rec, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
