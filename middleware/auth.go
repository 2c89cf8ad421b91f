// Package middleware carries the cross-cutting gin middleware: CORS and
// user identity extraction.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	userIDHeader   = "X-User-Id"
	userContextKey = "userID"
)

// CORSMiddleware enables cross-origin requests from the frontend.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Id")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// UserIdentityMiddleware extracts the authenticated user from the identity
// header set by the auth proxy in front of this service.
func UserIdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := c.GetHeader(userIDHeader); user != "" {
			c.Set(userContextKey, user)
		}
		c.Next()
	}
}

// GetUserID returns the authenticated user ID, or "" when the request
// carried no identity.
func GetUserID(c *gin.Context) string {
	return c.GetString(userContextKey)
}
