package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/service"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// JWT requires a valid access token in the Authorization header and stores
// the caller's id under "user_id".
func JWT(tokens *service.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := tokens.ParseAccess(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the id JWT stored on the context.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// PassChecker reports whether a user holds a pass.
type PassChecker interface {
	PassPower(ctx context.Context, userID int64) (int, bool, error)
}

// RequirePass rejects callers without a pass with 403. JWT must run before it.
func RequirePass(passes PassChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		_, has, err := passes.PassPower(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to check pass"})
			return
		}
		if !has {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "pass required"})
			return
		}
		c.Next()
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
