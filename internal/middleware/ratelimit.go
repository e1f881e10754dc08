package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RealIP extracts the client's real IP address, preferring Cloudflare's
// CF-Connecting-IP header, then X-Forwarded-For, and falling back to RemoteAddr.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time

	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRateLimiter allows limit requests per second per key with the given
// burst. Keys idle for ten minutes are forgotten by Cleanup.
func NewRateLimiter(limit float64, burst int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(limit),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
		logger:   logger.With("component", "ratelimit"),
	}
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = rl.now()
	return v.limiter
}

// Allow reports whether a request for key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.get(key).AllowN(rl.now(), 1)
}

// retryAfter is the number of whole seconds until key has a token again.
func (rl *RateLimiter) retryAfter(key string) int {
	r := rl.get(key).ReserveN(rl.now(), 1)
	if !r.OK() {
		return 1
	}
	d := r.DelayFrom(rl.now())
	r.CancelAt(rl.now())
	return max(1, int(math.Ceil(d.Seconds())))
}

// Cleanup forgets keys that have been idle and returns how many it removed.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.idle)
	n := 0
	for key, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, key)
			n++
		}
	}
	return n
}

// Start runs Cleanup every minute until Stop.
func (rl *RateLimiter) Start(ctx context.Context) {
	ctx, rl.cancel = context.WithCancel(ctx)
	rl.done = make(chan struct{})
	go func() {
		defer close(rl.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := rl.Cleanup(); n > 0 {
					rl.logger.Debug("forgot idle clients", "count", n)
				}
			}
		}
	}()
}

func (rl *RateLimiter) Stop() {
	if rl.cancel != nil {
		rl.cancel()
		<-rl.done
	}
}

// RateLimit returns middleware that rate-limits requests by a key function.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", strconv.Itoa(limiter.retryAfter(key)))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
