package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ContextEmailKey  = "authEmail"
	ContextClaimsKey = "authClaims"
)

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's email and claims on the request context.
func RequireAuth(issuer *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		claims, err := issuer.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ContextEmailKey, claims.Subject)
		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// CallerEmail returns the authenticated email set by RequireAuth.
func CallerEmail(c *gin.Context) string {
	return c.GetString(ContextEmailKey)
}
