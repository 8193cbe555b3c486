package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/HammerMeetNail/mindio/internal/testutil"
)

type memoryCounter struct {
	counts map[string]int64
	keys   []string
	err    error
}

func (m *memoryCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if m.counts == nil {
		m.counts = make(map[string]int64)
	}
	m.counts[key]++
	m.keys = append(m.keys, key)
	return m.counts[key], nil
}

func newTestLimiter(counter windowCounter, limit int64, keyFunc func(*http.Request) string) *RateLimiter {
	rl := NewRateLimiter(nil, limit, time.Hour, "ratelimit:ai:", keyFunc)
	rl.counter = counter
	rl.now = testutil.FixedClock(time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC))
	return rl
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
}

func TestRateLimiter_NilRedisFailsOpen(t *testing.T) {
	limiter := NewRateLimiter(nil, 1, time.Hour, "test:", nil)
	handler := limiter.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		if rr.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, rr.Code)
		}
	}
}

func TestRateLimiter_WithFallbackServesLimitedHandler(t *testing.T) {
	limiter := newTestLimiter(&memoryCounter{}, 1, func(*http.Request) string { return "user-1" })
	var served []string
	handler := limiter.WithFallback(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			served = append(served, "next")
			w.WriteHeader(http.StatusCreated)
		}),
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			served = append(served, "limited")
			w.WriteHeader(http.StatusCreated)
		}),
	)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/suggestions/generate", nil))
		testutil.AssertStatusCode(t, rr, http.StatusCreated)
		if i == 1 && rr.Header().Get("Retry-After") != "2700" {
			t.Fatalf("expected Retry-After on limited response, got %q", rr.Header().Get("Retry-After"))
		}
	}
	if strings.Join(served, ",") != "next,limited" {
		t.Fatalf("unexpected handlers %v", served)
	}
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	counter := &memoryCounter{}
	limiter := newTestLimiter(counter, 2, func(*http.Request) string { return "user-1" })
	handler := limiter.Middleware(okHandler())

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/suggestions/generate", nil))
		if i < 2 && last.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, last.Code)
		}
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last.Code)
	}
	if got := last.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected remaining 0, got %q", got)
	}
	if got := last.Header().Get("Retry-After"); got != "2700" {
		t.Fatalf("expected Retry-After 2700, got %q", got)
	}
	testutil.AssertJSONError(t, last, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")

	windowStart := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Unix()
	wantKey := "ratelimit:ai:user-1:" + strconv.FormatInt(windowStart, 10)
	if counter.keys[0] != wantKey {
		t.Fatalf("expected key %q, got %q", wantKey, counter.keys[0])
	}
}

func TestRateLimiter_FallsBackToClientIP(t *testing.T) {
	counter := &memoryCounter{}
	limiter := newTestLimiter(counter, 5, func(*http.Request) string { return "" })

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "203.0.113.9:4444"
	limiter.Middleware(okHandler()).ServeHTTP(httptest.NewRecorder(), req)

	if len(counter.keys) != 1 || !strings.HasPrefix(counter.keys[0], "ratelimit:ai:ip:203.0.113.9:") {
		t.Fatalf("unexpected keys %v", counter.keys)
	}
}

func TestRateLimiter_CounterErrorFailsOpen(t *testing.T) {
	limiter := newTestLimiter(&memoryCounter{err: errors.New("redis down")}, 1, nil)
	rr := httptest.NewRecorder()
	limiter.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Limit") != "" {
		t.Fatal("did not expect rate limit headers on failure")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		remote   string
		expected string
	}{
		{"forwarded single", map[string]string{"X-Forwarded-For": "10.0.0.1"}, "192.168.1.1:1234", "10.0.0.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "192.168.1.1:1234", "10.0.0.1"},
		{"forwarded with port", map[string]string{"X-Forwarded-For": "10.0.0.3:555"}, "192.168.1.1:1234", "10.0.0.3"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.2"}, "192.168.1.1:1234", "10.0.0.2"},
		{"remote addr", nil, "192.168.1.1:1234", "192.168.1.1"},
		{"remote without port", nil, "192.168.1.1", "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.expected {
				t.Fatalf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}
