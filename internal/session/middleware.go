package session

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const contextKey = "studio_session"

// Middleware guards a route group: requests must carry a valid session token
// in an Authorization Bearer header or an X-Session-Token header.
func Middleware(m *Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := tokenFromRequest(c.Request())
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing session token")
			}
			s, ok := m.Get(token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired session")
			}
			c.Set(contextKey, s)
			return next(c)
		}
	}
}

// FromContext returns the session a guard stashed on the request, or nil.
func FromContext(c echo.Context) *Session {
	s, _ := c.Get(contextKey).(*Session)
	return s
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
			return rest
		}
	}
	return r.Header.Get("X-Session-Token")
}
