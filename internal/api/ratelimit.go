package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// traderLimiter rate-limits order submissions per trader identity, the
// HTTP-facing analogue of the engine's single-threaded guarantee: it keeps
// one noisy trader from starving the others' requests ahead of a roll.
type traderLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newTraderLimiter(r rate.Limit, burst int) *traderLimiter {
	return &traderLimiter{limiters: make(map[string]*rate.Limiter), r: r, burst: burst}
}

func (tl *traderLimiter) forTrader(trader string) *rate.Limiter {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	l, ok := tl.limiters[trader]
	if !ok {
		l = rate.NewLimiter(tl.r, tl.burst)
		tl.limiters[trader] = l
	}
	return l
}

// middleware rejects a request with 429 if the X-Trader header has
// exhausted its budget. Requests with no X-Trader header are passed through
// without any rate limit.
func (tl *traderLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		trader := c.GetHeader("X-Trader")
		if trader == "" {
			c.Next()
			return
		}
		if !tl.forTrader(trader).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
