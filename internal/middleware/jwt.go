package middleware // reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/auth"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects its subject (the username) into the request context. The
// issuer enforces the configured signing algorithm and expiry; any failure
// yields a uniform 401 so clients cannot probe which check rejected them.
// Handlers behind this middleware read the subject via c.Get("username").
func JWTAuth(issuer *auth.Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			subject, err := issuer.Verify(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set("username", subject)
			return next(c)
		}
	}
}

// Username extracts the authenticated subject stored by JWTAuth. It
// returns "" when the middleware did not run for this route.
func Username(c echo.Context) string {
	s, _ := c.Get("username").(string)
	return s
}
