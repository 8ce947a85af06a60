package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/bloodbank-api/internal/utils"
)

const (
	userIDKey   = "userID"
	userRoleKey = "userRole"
)

// Authenticate reads a bearer token, or a token query parameter for
// EventSource clients, and stores the claims in the gin context. Requests
// without a token pass through anonymously; a bad token is refused.
func Authenticate(tokens *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearer(c)
		if tokenString == "" {
			c.Next()
			return
		}

		claims, err := tokens.ValidateJWT(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(userRoleKey, claims.Role)
		c.Next()
	}
}

// RequireAuth refuses anonymous requests.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, if any.
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(userIDKey)
	return id, id != ""
}

func bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}
