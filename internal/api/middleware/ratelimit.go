package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mesquitadev/whatsticket-be/internal/api/response"
)

type requestWindow struct {
	mu         sync.Mutex
	timestamps []int64
}

var rateLimiterStore sync.Map

// RateLimit applies a sliding-window limit per client IP, prefixed by key so
// independent route groups do not share a budget.
func RateLimit(key string, limit int, window time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}

	return func(c *gin.Context) {
		storeKey := key + ":" + c.ClientIP()
		entryAny, _ := rateLimiterStore.LoadOrStore(storeKey, &requestWindow{
			timestamps: make([]int64, 0, limit),
		})
		entry := entryAny.(*requestWindow)

		now := time.Now().UnixNano()
		cutoff := now - window.Nanoseconds()

		entry.mu.Lock()
		kept := entry.timestamps[:0]
		for _, ts := range entry.timestamps {
			if ts > cutoff {
				kept = append(kept, ts)
			}
		}
		entry.timestamps = kept

		if len(entry.timestamps) >= limit {
			entry.mu.Unlock()
			response.Fail(c, 429, "too many requests")
			c.Abort()
			return
		}

		entry.timestamps = append(entry.timestamps, now)
		entry.mu.Unlock()

		c.Next()
	}
}
