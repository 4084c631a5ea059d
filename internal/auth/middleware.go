package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UserIDKey is the echo context key holding the authenticated user
const UserIDKey = "user_id"

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Middleware rejects requests without a valid bearer token and stores the
// token's user ID under UserIDKey. The token may also be passed as the
// "token" query parameter, which websocket clients in browsers need.
func Middleware(secret []byte, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request().Header.Get("Authorization"))
			if token == "" {
				token = c.QueryParam("token")
			}
			if token == "" {
				return c.JSON(http.StatusUnauthorized, errorBody{
					Error:   "missing_token",
					Message: "JWT token is required in Authorization header",
				})
			}

			claims, err := ValidateToken(secret, token)
			if err != nil {
				logger.Warn("Request rejected: invalid token",
					zap.String("path", c.Path()),
					zap.Error(err))
				return c.JSON(http.StatusUnauthorized, errorBody{
					Error:   "invalid_token",
					Message: "Invalid or expired JWT token",
				})
			}

			c.Set(UserIDKey, claims.UserID)
			return next(c)
		}
	}
}

// UserID returns the authenticated user of the request, or "" when the
// middleware did not run
func UserID(c echo.Context) string {
	id, _ := c.Get(UserIDKey).(string)
	return id
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
