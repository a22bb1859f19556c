package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func tempDirectory(t *testing.T, admins, instructors []string) *Directory {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	d, err := NewDirectory(db, admins, instructors, nil)
	require.NoError(t, err)
	return d
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("Student")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, r)

	r, err = ParseRole("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("dean")
	assert.True(t, errors.Is(err, ErrUnknownRole))
}

func TestCapabilities(t *testing.T) {
	assert.False(t, Identity{Role: RoleUser}.Can(CapRetrain))
	assert.True(t, Identity{Role: RoleInstructor}.Can(CapRetrain))
	assert.False(t, Identity{Role: RoleInstructor}.Can(CapRollback))
	assert.True(t, Identity{Role: RoleAdmin}.Can(CapRollback))
	assert.False(t, Identity{}.Can(CapRetrain))
}

func TestNormalizeEmail(t *testing.T) {
	e, err := NormalizeEmail("  Alice@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", e)

	_, err = NormalizeEmail("not-an-email")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestResolveCreatesAndBootstraps(t *testing.T) {
	d := tempDirectory(t, []string{"root@uni.edu"}, []string{"prof@uni.edu"})
	ctx := context.Background()

	id, err := d.Resolve(ctx, "Student@Uni.edu")
	require.NoError(t, err)
	assert.Equal(t, "student@uni.edu", id.Email)
	assert.Equal(t, RoleUser, id.Role)

	id, err = d.Resolve(ctx, "prof@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, RoleInstructor, id.Role)

	id, err = d.Resolve(ctx, "root@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, id.Role)

	// second resolve reads the stored row
	id, err = d.Resolve(ctx, "student@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, id.Role)
}

func TestSetRole(t *testing.T) {
	d := tempDirectory(t, nil, nil)
	ctx := context.Background()

	_, err := d.Resolve(ctx, "ta@uni.edu")
	require.NoError(t, err)

	id, err := d.SetRole(ctx, "ta@uni.edu", RoleInstructor)
	require.NoError(t, err)
	assert.Equal(t, RoleInstructor, id.Role)

	_, err = d.SetRole(ctx, "ghost@uni.edu", RoleAdmin)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = d.SetRole(ctx, "ta@uni.edu", Role("dean"))
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestLoginUpdatesTimestamp(t *testing.T) {
	d := tempDirectory(t, nil, nil)
	ctx := context.Background()

	first, err := d.Login(ctx, "a@b.io")
	require.NoError(t, err)
	second, err := d.Login(ctx, "a@b.io")
	require.NoError(t, err)
	assert.False(t, second.LastLogin.Before(first.LastLogin))
}

func TestIdentityMiddleware(t *testing.T) {
	d := tempDirectory(t, nil, []string{"prof@uni.edu"})
	e := echo.New()
	e.Use(IdentityMiddleware(d))
	e.GET("/whoami", func(c echo.Context) error {
		id, err := MustIdentity(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, id.Email+" "+string(id.Role))
	})
	e.POST("/retrain", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, Require(CapRetrain))

	cases := []struct {
		name   string
		method string
		path   string
		header string
		status int
	}{
		{"no header", http.MethodGet, "/whoami", "", http.StatusUnauthorized},
		{"bad header", http.MethodGet, "/whoami", "nope", http.StatusBadRequest},
		{"known instructor", http.MethodGet, "/whoami", "Prof@uni.edu", http.StatusOK},
		{"user cannot retrain", http.MethodPost, "/retrain", "kid@uni.edu", http.StatusForbidden},
		{"instructor can retrain", http.MethodPost, "/retrain", "prof@uni.edu", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.header != "" {
				req.Header.Set(HeaderUsername, tc.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}
