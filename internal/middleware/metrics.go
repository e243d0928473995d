package middleware

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-api/internal/service"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
)

// Metrics returns middleware that captures request metrics and counts failed backend
// calls reported through c.Errors.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, status, duration)

		for _, ginErr := range c.Errors {
			var appErr *appErrors.Error
			if errors.As(ginErr.Err, &appErr) && appErr.Code == appErrors.ErrRemoteOperation.Code {
				metricsSvc.RecordRemoteFailure(appErr.BackendCode)
			}
		}
	}
}
