package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/metrics"

	"github.com/gin-gonic/gin"
)

const sweepAbove = 10000

type clientInfo struct {
	start time.Time
	count int
}

// SimpleRateLimit blocks clients that send more than maxRequests per window.
// Counters live in process; each call gets its own table.
func SimpleRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	var (
		mu      sync.Mutex
		clients = make(map[string]*clientInfo)
		now     = time.Now
	)
	return func(c *gin.Context) {
		key := c.ClientIP()
		if userID, ok := UserID(c); ok {
			key = "user:" + formatID(userID)
		}

		mu.Lock()
		t := now()
		if len(clients) > sweepAbove {
			for k, v := range clients {
				if t.Sub(v.start) > window {
					delete(clients, k)
				}
			}
		}
		ci, ok := clients[key]
		if !ok || t.Sub(ci.start) > window {
			ci = &clientInfo{start: t}
			clients[key] = ci
		}
		ci.count++
		count := ci.count
		mu.Unlock()

		if count > maxRequests {
			metrics.RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		metrics.RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}
