package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/MindLooped/rupaay-fest/internal/utils"
)

// AdminAuth returns an Echo middleware that protects the admin endpoints.
// It accepts a Bearer credential that is either the shared admin password
// itself or an HS256 JWT previously issued by the admin login endpoint.
// Passing the raw password keeps curl-driven exports simple; the JWT path
// avoids resending the password on every request from the dashboard.
func AdminAuth(password, secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false,
					"error":   "missing bearer token",
				})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			if password != "" && subtle.ConstantTimeCompare([]byte(raw), []byte(password)) == 1 {
				return next(c)
			}
			if err := utils.ParseAdminToken(secret, raw); err == nil {
				return next(c)
			}
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"success": false,
				"error":   "invalid token",
			})
		}
	}
}
