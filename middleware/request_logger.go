package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"repricer/logger"
)

// RequestLogger logs every HTTP request on the ops surface through zap
func RequestLogger() gin.HandlerFunc {
	log := logger.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}
