package debughttp

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/tiiuae/ghaf-givc/internal/obs/logging"
)

// RateLimiter applies a per-client token bucket to the debug listener, so a
// runaway metrics scraper cannot monopolize the admin process.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	logger   *logging.Logger
}

// NewRateLimiter allows requestsPerSecond sustained with the given burst per
// client address.
func NewRateLimiter(requestsPerSecond, burst int, logger *logging.Logger) *RateLimiter {
	if logger == nil {
		logger = logging.Default()
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		logger:   logger,
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.limiters[key]; ok {
		return l
	}
	l := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[key] = l
	return l
}

// Middleware rejects over-limit requests with 429.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				key = host
			}
			if !rl.limiterFor(key).Allow() {
				rl.logger.WithFields(map[string]interface{}{
					"client": key,
					"path":   r.URL.Path,
				}).Warn("debug request rate limited")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
