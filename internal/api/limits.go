package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// IPRateLimiter is a per-IP token bucket. The webhook ingress sees one
// well-known sender plus whatever scans the open port, so buckets are
// cheap and never expire.
type IPRateLimiter struct {
	limits map[string]*tokenBucket
	mu     sync.RWMutex
	rate   time.Duration // refill interval per token
	burst  int
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
	capacity   float64
}

func newIPRateLimiter(rate time.Duration, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limits: make(map[string]*tokenBucket),
		rate:   rate,
		burst:  burst,
	}
}

// allow checks if a request is allowed for the given IP
func (l *IPRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket, exists := l.limits[ip]
	if !exists {
		bucket = &tokenBucket{
			tokens:     float64(l.burst),
			lastRefill: now,
			capacity:   float64(l.burst),
		}
		l.limits[ip] = bucket
		return true
	}

	elapsed := now.Sub(bucket.lastRefill)
	refills := elapsed.Nanoseconds() / l.rate.Nanoseconds()
	if refills > 0 {
		bucket.tokens = min(bucket.capacity, bucket.tokens+float64(refills))
		bucket.lastRefill = now
	}

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true
	}

	return false
}

// rateLimitMiddleware rejects over-limit callers with 429. A legitimate
// push burst (every camera seeing the same cat) fits well inside the burst
// capacity.
func rateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !limiter.allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"message":     "Too many requests. Please try again later.",
				"retry_after": limiter.rate.String(),
			})
			return
		}

		c.Next()
	}
}

// bodyLimitMiddleware caps request body size. Webhook payloads are a few
// hundred bytes; anything near the cap is not a Ring event.
func bodyLimitMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength == 0 && c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)

		// ParseMultipartForm leaves JSON bodies untouched (ErrNotMultipart)
		// but surfaces the size cap for form posts.
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			if err := c.Request.ParseMultipartForm(maxSize); err != nil {
				if err.Error() == "http: request body too large" {
					c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
						"error":    "request body too large",
						"message":  "Request body exceeds maximum allowed size.",
						"max_size": maxSize,
					})
					return
				}
			}
		}

		c.Next()
	}
}
