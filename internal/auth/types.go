package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrInvalidEmail is returned when an identity is not a well-formed email address.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrUnknownRole is returned for a role name outside user, instructor, admin.
	ErrUnknownRole = errors.New("unknown role")
	// ErrUserNotFound is returned when a directory lookup misses.
	ErrUserNotFound = errors.New("user not found")
)

// #region role
// Role is the coarse authorization level of a caller.
type Role string

const (
	RoleUser       Role = "user"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// ParseRole accepts the three roles plus "student" as an alias of user.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "student":
		return RoleUser, nil
	case "instructor":
		return RoleInstructor, nil
	case "admin":
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// #endregion role

// #region capability
// Capability names one privileged action.
type Capability string

const (
	CapRetrain          Capability = "retrain"
	CapRollback         Capability = "rollback"
	CapManageUsers      Capability = "manage_users"
	CapManageReferences Capability = "manage_references"
	CapViewHistory      Capability = "view_history"
)

var grants = map[Role][]Capability{
	RoleInstructor: {CapRetrain, CapManageReferences, CapViewHistory},
	RoleAdmin:      {CapRetrain, CapRollback, CapManageUsers, CapManageReferences, CapViewHistory},
}

// #endregion capability

// #region identity
// Identity is an authenticated caller.
type Identity struct {
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	LastLogin time.Time `json:"last_login"`
}

// Can reports whether the identity holds c.
func (id Identity) Can(c Capability) bool {
	for _, g := range grants[id.Role] {
		if g == c {
			return true
		}
	}
	return false
}

// IsInstructor reports whether feedback from this identity counts as an instructor review.
func (id Identity) IsInstructor() bool {
	return id.Role == RoleInstructor || id.Role == RoleAdmin
}

// #endregion identity

// #region email
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail trims and lowercases s and checks it is an email address.
func NormalizeEmail(s string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(s))
	if !emailPattern.MatchString(e) {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, s)
	}
	return e, nil
}

// #endregion email
