package middleware

import (
	"net/http"
	"strings"

	"relaycast/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// RoomContextKey is the gin context key carrying the authenticated room name.
const RoomContextKey = "room"

// RoomAuthMiddleware requires a bearer token scoped to a room and stores the
// room name in the gin context for the handler.
func RoomAuthMiddleware(authService ports.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		room, err := authService.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set(RoomContextKey, room)
		c.Next()
	}
}
