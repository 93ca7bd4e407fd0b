package middleware

import (
	"net/http"
	"strings"

	"github.com/eventsphere/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Auth validates the bearer token and stores the caller's identity on the
// request context.
func Auth(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := authService.ValidateAccessToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token subject"})
			c.Abort()
			return
		}

		c.Set("userID", userID)
		c.Set("isHost", claims.IsHost)
		c.Next()
	}
}

// HostOnly requires the authenticated user to be a host
func HostOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		isHost, exists := c.Get("isHost")
		if !exists || !isHost.(bool) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Host access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
