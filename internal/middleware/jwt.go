package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-auth/internal/service"
)

const userIDKey = "user_id"

// JWTAuth validates a Bearer access token and stores its user id in the echo
// context.  Handlers read it back with UserID.
func JWTAuth(tokens service.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, raw, ok := strings.Cut(auth, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Access token required"})
			}

			uid, err := tokens.VerifyAccess(strings.TrimSpace(raw))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": service.MessageOf(err, "Invalid token")})
			}

			c.Set(userIDKey, uid)
			return next(c)
		}
	}
}

// UserID returns the id stored by JWTAuth, or "" on unauthenticated routes.
func UserID(c echo.Context) string {
	uid, _ := c.Get(userIDKey).(string)
	return uid
}
