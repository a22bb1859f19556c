package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/adaptive-detect/internal/auth"
)

// RateLimitConfig is a token bucket applied per caller.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// limiter keys callers by identity email, falling back to the client IP for
// anonymous requests.
type limiter struct {
	cfg         RateLimitConfig
	mu          sync.Mutex
	buckets     map[string]*rate.Limiter
	lastCleanup time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	return &limiter{cfg: cfg, buckets: make(map[string]*rate.Limiter), lastCleanup: time.Now()}
}

// get returns the bucket for key. The map is reset hourly so idle callers do
// not accumulate.
func (l *limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) > time.Hour {
		l.buckets = make(map[string]*rate.Limiter)
		l.lastCleanup = time.Now()
	}

	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)
		l.buckets[key] = b
	}
	return b
}

func (l *limiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.cfg.Enabled {
				return next(c)
			}
			key := "ip:" + c.RealIP()
			if id, ok := auth.FromContext(c); ok {
				key = "user:" + id.Email
			}
			if !l.get(key).Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
