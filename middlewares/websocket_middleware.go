package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// WebSocketAuthMiddleware accepts the token from the query string, since
// browsers cannot set headers on websocket upgrades.
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			c.AbortWithStatus(401)
			return
		}

		if err := authenticate(c, token); err != nil {
			c.AbortWithStatus(401)
			return
		}
		c.Next()
	}
}
