package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/tiagofur/ordo-todo-sub018/internal/errors"
)

const UserIDContextKey = "userID"

// TokenParser resolves a bearer token to a user id.
type TokenParser interface {
	ParseToken(token string) (string, *apperrors.APIError)
}

// Auth guards the session repository routes. The resolved user id is stored
// on the context under UserIDContextKey.
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, apperrors.Unauthorized("missing authorization header"))
			return
		}
		token, ok := bearerToken(header)
		if !ok {
			abort(c, apperrors.Unauthorized("invalid authorization format"))
			return
		}

		userID, apiErr := parser.ParseToken(token)
		if apiErr != nil {
			abort(c, apiErr)
			return
		}
		c.Set(UserIDContextKey, userID)
		c.Next()
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(UserIDContextKey)
}

// bearerToken accepts "Bearer <token>" with a case-insensitive scheme.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abort(c *gin.Context, apiErr *apperrors.APIError) {
	body := gin.H{"code": apiErr.Code, "message": apiErr.Message}
	if apiErr.Details != nil {
		body["details"] = apiErr.Details
	}
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": body})
}
