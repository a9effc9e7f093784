package logging

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the per-request correlation id in and out of the gateway.
	RequestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
)

// RequestID returns the correlation id assigned by GinLogger, or "".
func RequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(requestIDKey)
}

// GinLogger assigns a request id and writes one access line per request.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDKey, reqID)
		c.Header(RequestIDHeader, reqID)

		path := c.Request.URL.Path
		if raw := maskSensitiveQuery(c.Request.URL.RawQuery); raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		latency := time.Since(start).Truncate(time.Millisecond)
		status := c.Writer.Status()
		line := fmt.Sprintf("[GIN] %3d | %10v | %15s | %-6s %q", status, latency, c.ClientIP(), c.Request.Method, path)
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			line += " | " + errs
		}

		entry := WithField(requestIDKey, reqID)
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error(line)
		case status >= http.StatusBadRequest:
			entry.Warn(line)
		default:
			entry.Info(line)
		}
	}
}

// GinRecovery converts handler panics into a logged 500.
func GinRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		WithFields(Fields{
			"panic":      recovered,
			"stack":      string(debug.Stack()),
			"path":       c.Request.URL.Path,
			requestIDKey: RequestID(c),
		}).Error("recovered from panic")

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
			"code":  "internal_error",
		})
	})
}
