package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/proktor-id/proktor-backend/internal/response"
	"github.com/proktor-id/proktor-backend/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for session token claims.
	ContextKeyClaims = "claims"
)

// RequireSessionToken validates a session token from the Authorization header
// (or ?token= for clients that cannot send headers) and binds its claims to
// the request.
func RequireSessionToken(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenStr = parts[1]
			}
		}
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}

		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := tokens.Validate(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetSessionClaims retrieves the session token claims from the Gin context.
func GetSessionClaims(c *gin.Context) *service.SessionClaims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}
