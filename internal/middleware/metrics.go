package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DustGate/dustgate/internal/pkg/metrics"
)

// RequestMetrics observes per-request latency. The route label is the
// matched template (e.g. /v1/settlements/:id), not the raw path, so
// parameterized requests share a series instead of exploding cardinality.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestDuration.
			WithLabelValues(route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
