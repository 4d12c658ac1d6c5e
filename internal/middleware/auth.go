package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkarpenko/pairchat/pkg/auth"
)

const (
	UserIDKey   = "userID"
	UsernameKey = "username"
)

// AuthMiddleware authenticates the request from the session cookie. The
// token is stateless, so no store lookup happens here; a missing, invalid
// or expired cookie is a 401.
func AuthMiddleware(sessions *auth.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.SessionFromRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := sessions.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}

// UserID returns the authenticated user id set by AuthMiddleware.
func UserID(c *gin.Context) uint {
	if v, ok := c.Get(UserIDKey); ok {
		if id, ok2 := v.(uint); ok2 {
			return id
		}
	}
	return 0
}

// Username returns the authenticated username set by AuthMiddleware.
func Username(c *gin.Context) string {
	if v, ok := c.Get(UsernameKey); ok {
		if name, ok2 := v.(string); ok2 {
			return name
		}
	}
	return ""
}
