// Package middleware provides the gin route-registration and
// auth-middleware helpers shared by internal/coregateway, ported from
// the teacher's middleware/route.go (POST/GET wrapped with an
// IsAuth-gated handler) and middleware/midman.go's snapshot-then-run
// middleware chain, generalized off the teacher's own auth scheme
// onto internal/security's JWT issuer.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flare152/flare-im-core/internal/security"
)

const claimsKey = "claims"

// Auth verifies the Authorization: Bearer <token> header and stores
// the resulting claims in the gin context for handlers to read via
// ClaimsFrom.
func Auth(issuer *security.JWTIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := issuer.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the verified claims Auth attached, or nil if this
// route isn't auth-gated.
func ClaimsFrom(c *gin.Context) *security.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*security.Claims)
	return claims
}
