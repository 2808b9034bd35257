package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route templates keep label cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordHTTPRequest(c.Request.Method, path, status, time.Since(start))
	}
}

// Timer measures a pump invocation
type Timer struct {
	start   time.Time
	metrics *Metrics
	channel string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, channel string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		channel: channel,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop() {
	t.metrics.RecordPump(t.channel, time.Since(t.start))
}
