package middlewares

import (
	"time"

	"github.com/citada/supplier-portal/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}
		if session, ok := GetSession(c); ok {
			fields["user_id"] = session.UserID
			fields["role"] = session.Role
		}
		utils.InfoLogger.WithFields(fields).Info("request")
	}
}
