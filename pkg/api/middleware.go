package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	echo "github.com/labstack/echo/v5"
)

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// rateLimiter tracks request timestamps per client IP over a sliding
// one-minute window.
type rateLimiter struct {
	mu        sync.Mutex
	perMinute int
	hits      map[string][]time.Time
}

func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{
		perMinute: perMinute,
		hits:      make(map[string][]time.Time),
	}
}

// allow records a request from ip and reports whether it is within the
// per-minute budget. A non-positive budget disables limiting.
func (r *rateLimiter) allow(ip string, now time.Time) bool {
	if r.perMinute <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-time.Minute)
	recent := r.hits[ip][:0]
	for _, t := range r.hits[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.perMinute {
		r.hits[ip] = recent
		return false
	}

	r.hits[ip] = append(recent, now)
	return true
}

// rateLimit returns middleware that rejects clients exceeding the
// limiter's per-minute budget with 429.
func rateLimit(limiter *rateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			ip, _, err := net.SplitHostPort(c.Request().RemoteAddr)
			if err != nil {
				ip = c.Request().RemoteAddr
			}
			if !limiter.allow(ip, time.Now()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
