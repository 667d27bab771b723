package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"tradeledger/pkg/logger"
)

// RequestRecorder receives finished requests. Implemented by the metrics package.
type RequestRecorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// Logger middleware logs HTTP requests with timing and status, and reports them to
// recorder when one is given.
func Logger(log *logger.Logger, recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if recorder != nil {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			recorder.RecordHTTPRequest(c.Request.Method, route, status, latency)
		}

		log.WithContext(c.Request.Context()).Infow("http request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}
