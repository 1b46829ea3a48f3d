package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/imyashkale/mcpgateway/internal/logger"
)

// HeaderRequestID correlates a request across log entries
const HeaderRequestID = "X-Request-ID"

// RequestLogger tags each request with an id and writes one structured entry
// when it completes. Query strings and headers are not logged.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.GetHeader(HeaderRequestID)
		if requestId == "" {
			requestId = uuid.New().String()
		}
		c.Set("request_id", requestId)
		c.Header(HeaderRequestID, requestId)

		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"request_id": requestId,
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if client, ok := CurrentClient(c); ok {
			fields["client_id"] = client.ClientId
		}
		if user, ok := CurrentUser(c); ok {
			fields["username"] = user.Username
		}

		entry := logger.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("Request completed")
		case status >= 400:
			entry.Warn("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}
