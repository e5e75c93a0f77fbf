package api

import (
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/afrodite/datingcore/pkg/apperrors"
)

const accountIDContextKey = "account_id"

// securityHeaders sets standard response headers on every response.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			return next(c)
		}
	}
}

// requireAuth resolves the Authorization: Bearer <token> header against
// the identity store, binding the token to the connecting remote
// address per spec.md §4.A, and stashes the resolved internal account
// id in the request context for handlers to read via accountID(c).
func (s *Server) requireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				return mapErr(apperrors.ErrUnauthorized)
			}
			token := strings.TrimPrefix(auth, prefix)

			id, err := s.identity.Resolve(c.Request().Context(), token, c.Request().RemoteAddr)
			if err != nil {
				return mapErr(err)
			}
			c.Set(accountIDContextKey, id)
			return next(c)
		}
	}
}

func accountID(c *echo.Context) int64 {
	id, _ := c.Get(accountIDContextKey).(int64)
	return id
}

// recordUsage enqueues one history.Recorder event per request, after the
// handler has set the final status code. A nil recorder (history
// disabled) makes this a no-op.
func (s *Server) recordUsage() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			err := next(c)
			if s.history != nil {
				status := c.Response().Status
				if err != nil {
					if he, ok := err.(*echo.HTTPError); ok {
						status = he.Code
					} else {
						status = mapErr(err).Code
					}
				}
				s.history.Record(
					accountID(c),
					c.Path(),
					c.Request().Method,
					status,
					c.Request().Header.Get("X-Client-Version"),
				)
			}
			return err
		}
	}
}
