package middleware

import (
	"context"
	"net/http"
	"strings"

	"restaurant-locator/auth"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthRequired.
const (
	ContextUserID   = "userID"
	ContextUsername = "username"
)

// TokenValidator checks a raw bearer token.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.Claims, error)
}

// AuthRequired validates the bearer token and injects the caller into context
func AuthRequired(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required (Bearer <token>)"})
			c.Abort()
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := tokens.Validate(c.Request.Context(), tokenStr)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Next()
	}
}

// GetUserID extracts caller user ID from context
func GetUserID(c *gin.Context) uint {
	return c.GetUint(ContextUserID)
}

// GetUsername extracts caller username from context
func GetUsername(c *gin.Context) string {
	return c.GetString(ContextUsername)
}
