package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	email      TEXT PRIMARY KEY,
	role       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	last_login TEXT NOT NULL
);
`

// #region directory
// Directory is the SQLite-backed user table. Unknown emails are created with
// RoleUser on first sight; configured admins and instructors are promoted on
// every resolve so config stays authoritative.
type Directory struct {
	db          *sql.DB
	admins      map[string]bool
	instructors map[string]bool
	logger      *zap.Logger
}

// NewDirectory creates the users table on db if needed.
func NewDirectory(db *sql.DB, admins, instructors []string, logger *zap.Logger) (*Directory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate users: %w", err)
	}
	d := &Directory{
		db:          db,
		admins:      toSet(admins),
		instructors: toSet(instructors),
		logger:      logger,
	}
	return d, nil
}

func toSet(emails []string) map[string]bool {
	out := make(map[string]bool, len(emails))
	for _, e := range emails {
		if n, err := NormalizeEmail(e); err == nil {
			out[n] = true
		}
	}
	return out
}

// #endregion directory

// #region resolve
// Resolve returns the identity for email, creating the user if it does not exist.
func (d *Directory) Resolve(ctx context.Context, email string) (Identity, error) {
	e, err := NormalizeEmail(email)
	if err != nil {
		return Identity{}, err
	}
	now := time.Now().UTC()

	id, err := d.Lookup(ctx, e)
	switch {
	case errors.Is(err, ErrUserNotFound):
		id = Identity{Email: e, Role: d.bootstrapRole(e, RoleUser), CreatedAt: now, LastLogin: now}
		_, err = d.db.ExecContext(ctx,
			`INSERT INTO users (email, role, created_at, last_login) VALUES (?, ?, ?, ?)
			 ON CONFLICT(email) DO NOTHING`,
			id.Email, string(id.Role), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
		)
		if err != nil {
			return Identity{}, fmt.Errorf("create user: %w", err)
		}
		d.logger.Info("user created", zap.String("email", e), zap.String("role", string(id.Role)))
		return id, nil
	case err != nil:
		return Identity{}, err
	}

	id.Role = d.bootstrapRole(e, id.Role)
	return id, nil
}

// Login resolves email and records the login time.
func (d *Directory) Login(ctx context.Context, email string) (Identity, error) {
	id, err := d.Resolve(ctx, email)
	if err != nil {
		return Identity{}, err
	}
	now := time.Now().UTC()
	if _, err := d.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE email = ?`,
		now.Format(time.RFC3339Nano), id.Email); err != nil {
		return Identity{}, fmt.Errorf("update login: %w", err)
	}
	id.LastLogin = now
	return id, nil
}

// Lookup reads a stored user without creating one.
func (d *Directory) Lookup(ctx context.Context, email string) (Identity, error) {
	var id Identity
	var role, created, last string
	err := d.db.QueryRowContext(ctx,
		`SELECT email, role, created_at, last_login FROM users WHERE email = ?`, email,
	).Scan(&id.Email, &role, &created, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	id.Role = Role(role)
	id.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	id.LastLogin, _ = time.Parse(time.RFC3339Nano, last)
	return id, nil
}

func (d *Directory) bootstrapRole(email string, stored Role) Role {
	switch {
	case d.admins[email]:
		return RoleAdmin
	case d.instructors[email] && stored != RoleAdmin:
		return RoleInstructor
	}
	return stored
}

// #endregion resolve

// #region set-role
// SetRole changes the stored role of an existing user.
func (d *Directory) SetRole(ctx context.Context, email string, role Role) (Identity, error) {
	e, err := NormalizeEmail(email)
	if err != nil {
		return Identity{}, err
	}
	if _, err := ParseRole(string(role)); err != nil {
		return Identity{}, err
	}
	res, err := d.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE email = ?`, string(role), e)
	if err != nil {
		return Identity{}, fmt.Errorf("set role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Identity{}, fmt.Errorf("%w: %s", ErrUserNotFound, e)
	}
	d.logger.Info("role changed", zap.String("email", e), zap.String("role", string(role)))
	return d.Lookup(ctx, e)
}

// #endregion set-role
