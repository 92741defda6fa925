package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/citada/supplier-portal/utils"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter is a sliding-window limiter keyed by client IP.
type RateLimiter struct {
	rate     int
	interval time.Duration
	ips      map[string][]time.Time
	mu       sync.Mutex
}

func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		rate:     rate,
		interval: interval,
		ips:      make(map[string][]time.Time),
	}
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP(), time.Now()) {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.interval)
	valid := rl.ips[ip][:0]
	for _, t := range rl.ips[ip] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) >= rl.rate {
		rl.ips[ip] = valid
		return false
	}
	rl.ips[ip] = append(valid, now)
	return true
}

// SendLimiter throttles message sends per authenticated user with a token
// bucket, so one chatty tab cannot flood a conversation.
type SendLimiter struct {
	every time.Duration
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewSendLimiter(every time.Duration, burst int) *SendLimiter {
	return &SendLimiter{
		every:    every,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (sl *SendLimiter) limiter(key string) *rate.Limiter {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	l, ok := sl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(sl.every), sl.burst)
		sl.limiters[key] = l
	}
	return l
}

func (sl *SendLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if session, ok := GetSession(c); ok {
			key = session.UserID
		}
		if !sl.limiter(key).Allow() {
			utils.RespondJSON(c, http.StatusTooManyRequests, "Too many messages, slow down", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
