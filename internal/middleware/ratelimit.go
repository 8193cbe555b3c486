package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/mindio/internal/logging"
)

// windowCounter increments the hit count for key in the current window.
type windowCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type redisCounter struct {
	client *redis.Client
}

func (c redisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimiter is a fixed-window limiter backed by Redis. It fails open when
// Redis is unavailable.
type RateLimiter struct {
	counter windowCounter
	limit   int64
	window  time.Duration
	prefix  string
	keyFunc func(*http.Request) string
	now     func() time.Time
}

// NewRateLimiter returns a limiter keyed by keyFunc, falling back to the
// client IP when keyFunc is nil or yields "". A nil client disables limiting.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration, prefix string, keyFunc func(*http.Request) string) *RateLimiter {
	rl := &RateLimiter{
		limit:   limit,
		window:  window,
		prefix:  prefix,
		keyFunc: keyFunc,
		now:     time.Now,
	}
	if client != nil {
		rl.counter = redisCounter{client: client}
	}
	return rl
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return rl.WithFallback(next, nil)
}

// WithFallback hands requests over the limit to limited instead of
// rejecting them. A nil limited handler answers 429.
func (rl *RateLimiter) WithFallback(next, limited http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.counter == nil || rl.limit <= 0 || rl.window <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		subject := ""
		if rl.keyFunc != nil {
			subject = rl.keyFunc(r)
		}
		if subject == "" {
			subject = "ip:" + getClientIP(r)
		}

		now := rl.now()
		windowStart := now.Truncate(rl.window)
		reset := windowStart.Add(rl.window)
		key := fmt.Sprintf("%s%s:%d", rl.prefix, subject, windowStart.Unix())

		count, err := rl.counter.Incr(r.Context(), key, rl.window)
		if err != nil {
			logging.FromContext(r.Context()).Warn("Rate limiter unavailable; allowing request", map[string]interface{}{
				"error": err.Error(),
			})
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > rl.limit {
			retryAfter := int64(reset.Sub(now).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			if limited != nil {
				limited.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if host, _, err := net.SplitHostPort(first); err == nil {
			return host
		}
		return first
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
