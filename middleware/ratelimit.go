// middleware/ratelimit.go
package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RequestLimiter throttles each user (or IP when anonymous) with a token bucket.
type RequestLimiter struct {
	perSecond rate.Limit
	burst     int
	idleTTL   time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
	clockNow func() time.Time
}

func NewRequestLimiter(requestsPerMinute float64, burst int) *RequestLimiter {
	perSecond := requestsPerMinute / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RequestLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		idleTTL:   10 * time.Minute,
		visitors:  make(map[string]*visitor),
		clockNow:  time.Now,
	}
}

func (r *RequestLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, _ := c.Locals("user_id").(string)
		if id == "" {
			id = "ip:" + c.IP()
		}
		if !r.obtain(id).AllowN(r.clockNow(), 1) {
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, slow down",
			})
		}
		return c.Next()
	}
}

func (r *RequestLimiter) obtain(id string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clockNow()
	v, ok := r.visitors[id]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.perSecond, r.burst)}
		r.visitors[id] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Sweep forgets visitors idle for longer than the TTL.
func (r *RequestLimiter) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.clockNow().Add(-r.idleTTL)
	for id, v := range r.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(r.visitors, id)
		}
	}
}
