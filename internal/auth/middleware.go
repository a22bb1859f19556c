package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HeaderUsername carries the caller's email on every request.
const HeaderUsername = "X-Username"

type contextKey string

// identityKey is the echo context key holding the resolved Identity.
const identityKey contextKey = "identity"

// #region middleware
// IdentityMiddleware resolves the X-Username header through dir and stores the
// Identity in the echo context. A missing header is not an error here; handlers
// that need a caller use MustIdentity. A malformed header is rejected with 400.
func IdentityMiddleware(dir *Directory) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(HeaderUsername)
			if raw == "" {
				return next(c)
			}
			id, err := dir.Resolve(c.Request().Context(), raw)
			if errors.Is(err, ErrInvalidEmail) {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			if err != nil {
				return err
			}
			c.Set(string(identityKey), id)
			return next(c)
		}
	}
}

// #endregion middleware

// #region accessors
// FromContext returns the identity set by IdentityMiddleware.
func FromContext(c echo.Context) (Identity, bool) {
	id, ok := c.Get(string(identityKey)).(Identity)
	return id, ok
}

// MustIdentity returns the caller or a 401 error.
func MustIdentity(c echo.Context) (Identity, error) {
	id, ok := FromContext(c)
	if !ok {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "missing "+HeaderUsername+" header")
	}
	return id, nil
}

// Require returns middleware that rejects callers lacking want with 401 or 403.
func Require(want Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := MustIdentity(c)
			if err != nil {
				return err
			}
			if !id.Can(want) {
				return echo.NewHTTPError(http.StatusForbidden, "role "+string(id.Role)+" lacks "+string(want))
			}
			return next(c)
		}
	}
}

// #endregion accessors
