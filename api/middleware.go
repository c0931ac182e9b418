package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const headerRequestID = "X-Request-Id"

// requestLogger injects a request id and logs a summary of each request.
func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		reqLog := log.WithField("request_id", rid)
		c.Set("logger", reqLog)

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := logrus.Fields{
			"method":      c.Request.Method,
			"path":        path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			reqLog.WithFields(fields).WithField("errors", c.Errors.String()).Warn("request")
			return
		}
		reqLog.WithFields(fields).Debug("request")
	}
}

// logger returns the request scoped logger.
func logger(c *gin.Context) *logrus.Entry {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*logrus.Entry); ok && l != nil {
			return l
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
