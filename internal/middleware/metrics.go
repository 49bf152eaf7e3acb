package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/canto-lessons/internal/service"
)

// unmatchedRoute labels requests that hit no registered route so stray paths
// do not each become a metric series.
const unmatchedRoute = "unmatched"

// Metrics records request count and latency per route template.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
