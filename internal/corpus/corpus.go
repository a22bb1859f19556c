// Package corpus stores the documents detection compares against: the global
// reference set and documents uploaded by users.
package corpus

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/adaptive-detect/internal/analyzer"
)

var (
	// ErrNotFound is returned when a document id does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when the id or the exact text is already stored in the same scope.
	ErrDuplicate = errors.New("duplicate document")
	// ErrInvalid is returned for documents that cannot be stored as given.
	ErrInvalid = errors.New("invalid document")
)

// #region types
// Kind separates reference documents from user uploads.
type Kind string

const (
	KindReference Kind = "reference"
	KindUser      Kind = "user"
)

// Doc is one stored document.
type Doc struct {
	DocID     string    `json:"doc_id"`
	Kind      Kind      `json:"kind"`
	Owner     string    `json:"owner,omitempty"`
	Title     string    `json:"title,omitempty"`
	Text      string    `json:"text"`
	Language  string    `json:"language,omitempty"`
	TextHash  string    `json:"text_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// #endregion types

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id     TEXT PRIMARY KEY,
	kind       TEXT NOT NULL CHECK (kind IN ('reference', 'user')),
	owner      TEXT NOT NULL DEFAULT '',
	title      TEXT,
	text       TEXT NOT NULL,
	language   TEXT,
	text_hash  TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE (kind, owner, text_hash)
);

CREATE INDEX IF NOT EXISTS idx_documents_kind_owner ON documents(kind, owner);
`

// #endregion schema

// #region store
// Store is the SQLite document table.
type Store struct {
	db *sql.DB
}

// NewStore creates the documents table on db if needed.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion store

// #region add
// AddReference stores a reference document. An empty DocID is assigned.
func (s *Store) AddReference(ctx context.Context, d Doc) (Doc, error) {
	d.Kind = KindReference
	d.Owner = ""
	return s.add(ctx, d)
}

// AddUserDocument stores a document owned by owner.
func (s *Store) AddUserDocument(ctx context.Context, owner string, d Doc) (Doc, error) {
	owner = normalizeOwner(owner)
	if owner == "" {
		return Doc{}, fmt.Errorf("%w: user document requires an owner", ErrInvalid)
	}
	d.Kind = KindUser
	d.Owner = owner
	return s.add(ctx, d)
}

func (s *Store) add(ctx context.Context, d Doc) (Doc, error) {
	if strings.TrimSpace(d.Text) == "" {
		return Doc{}, fmt.Errorf("%w: document text is empty", ErrInvalid)
	}
	if d.DocID == "" {
		d.DocID = uuid.New().String()
	}
	if d.Language == "" {
		d.Language = analyzer.DetectLanguage(d.Text)
	}
	d.TextHash = hashText(d.Text)
	d.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (doc_id, kind, owner, title, text, language, text_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.DocID, string(d.Kind), d.Owner, d.Title, d.Text, d.Language, d.TextHash,
		d.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return Doc{}, fmt.Errorf("%w: %s", ErrDuplicate, d.DocID)
		}
		return Doc{}, fmt.Errorf("insert document: %w", err)
	}
	return d, nil
}

// #endregion add

// #region read
// Get returns one document by id.
func (s *Store) Get(ctx context.Context, docID string) (Doc, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+docColumns+` FROM documents WHERE doc_id = ?`, docID)
	d, err := scanDoc(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Doc{}, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	if err != nil {
		return Doc{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// ListReferences returns every reference document, ordered by id.
func (s *Store) ListReferences(ctx context.Context) ([]Doc, error) {
	return s.query(ctx, `SELECT `+docColumns+` FROM documents WHERE kind = 'reference' ORDER BY doc_id`)
}

// ListOwned returns the documents owned by owner, ordered by id.
func (s *Store) ListOwned(ctx context.Context, owner string) ([]Doc, error) {
	return s.query(ctx,
		`SELECT `+docColumns+` FROM documents WHERE kind = 'user' AND owner = ? ORDER BY doc_id`,
		normalizeOwner(owner))
}

// DeleteReference removes a reference document.
func (s *Store) DeleteReference(ctx context.Context, docID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ? AND kind = 'reference'`, docID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	return nil
}

// ClearReferences removes every reference document and returns how many were
// removed. User documents are kept.
func (s *Store) ClearReferences(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = 'reference'`)
	if err != nil {
		return 0, fmt.Errorf("clear references: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear references: %w", err)
	}
	return int(n), nil
}

// #endregion read

// #region provider
// References returns the global reference corpus for detection.
func (s *Store) References(ctx context.Context) ([]analyzer.Document, error) {
	docs, err := s.ListReferences(ctx)
	if err != nil {
		return nil, err
	}
	return toAnalyzerDocs(docs), nil
}

// UserDocuments returns every user document not owned by excludeOwner.
func (s *Store) UserDocuments(ctx context.Context, excludeOwner string) ([]analyzer.Document, error) {
	docs, err := s.query(ctx,
		`SELECT `+docColumns+` FROM documents WHERE kind = 'user' AND owner <> ? ORDER BY doc_id`,
		normalizeOwner(excludeOwner))
	if err != nil {
		return nil, err
	}
	return toAnalyzerDocs(docs), nil
}

func toAnalyzerDocs(docs []Doc) []analyzer.Document {
	out := make([]analyzer.Document, len(docs))
	for i, d := range docs {
		out[i] = analyzer.Document{DocID: d.DocID, Owner: d.Owner, Text: d.Text, Language: d.Language}
	}
	return out
}

// #endregion provider

// #region helpers
const docColumns = `doc_id, kind, owner, title, text, language, text_hash, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDoc(row rowScanner) (Doc, error) {
	var d Doc
	var kind, created string
	var title, lang sql.NullString
	if err := row.Scan(&d.DocID, &kind, &d.Owner, &title, &d.Text, &lang, &d.TextHash, &created); err != nil {
		return Doc{}, err
	}
	d.Kind = Kind(kind)
	d.Title = title.String
	d.Language = lang.String
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return d, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Doc, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []Doc{}
	for rows.Next() {
		d, err := scanDoc(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func normalizeOwner(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// #endregion helpers
