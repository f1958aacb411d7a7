package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"crowd-dashboard/internal/auth"
	"crowd-dashboard/internal/model"
)

const (
	claimsKey    = "tokenClaims"
	userKey      = "currentUser"
	authHeader   = "Authorization"
	bearerPrefix = "Bearer"
)

// Auth validates the bearer token on every protected call. An expired or
// invalid token clears the session so the client is sent back to login with
// no stale credentials left behind.
func Auth(parser *auth.Parser, sessions *auth.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(authHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header missing"})
			return
		}

		parts := strings.SplitN(raw, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := parser.Parse(parts[1])
		if err != nil {
			sessions.Clear()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		user := model.User{
			ID:    claims.Subject,
			Name:  claims.Name,
			Email: claims.Email,
			Role:  claims.Role,
		}

		c.Set(claimsKey, claims)
		c.Set(userKey, user)
		c.Next()
	}
}

func MustUser(c *gin.Context) (model.User, bool) {
	value, exists := c.Get(userKey)
	if !exists {
		return model.User{}, false
	}
	user, ok := value.(model.User)
	if !ok {
		return model.User{}, false
	}
	return user, true
}
