package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/mindio/internal/config"
	"github.com/HammerMeetNail/mindio/internal/handlers"
	"github.com/HammerMeetNail/mindio/internal/logging"
	"github.com/HammerMeetNail/mindio/internal/metrics"
	"github.com/HammerMeetNail/mindio/internal/middleware"
	"github.com/HammerMeetNail/mindio/internal/models"
	"github.com/HammerMeetNail/mindio/internal/services"
	"github.com/HammerMeetNail/mindio/internal/testutil"
)

var errOffline = errors.New("database offline")

// offlineDB fails every statement so routed requests end in a 500.
type offlineDB struct{}

type offlineRow struct{}

func (offlineRow) Scan(...any) error { return errOffline }

func (offlineDB) Query(context.Context, string, ...any) (services.Rows, error) {
	return nil, errOffline
}
func (offlineDB) QueryRow(context.Context, string, ...any) services.Row { return offlineRow{} }
func (offlineDB) Exec(context.Context, string, ...any) (services.CommandTag, error) {
	return nil, errOffline
}
func (offlineDB) Begin(context.Context) (services.Tx, error) { return nil, errOffline }

type staticUsers struct {
	user *models.User
}

func (s staticUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.user != nil && s.user.ID == id {
		return s.user, nil
	}
	return nil, services.ErrUserNotFound
}

type okChecker struct{}

func (okChecker) Health(context.Context) error { return nil }

func testRouter(t *testing.T) (http.Handler, string) {
	t.Helper()
	user := &models.User{ID: uuid.New(), Email: "u@example.com", Username: "u"}
	authService := services.NewAuthService(staticUsers{user: user}, "test-secret", "mindio", time.Hour)
	token, err := authService.IssueToken(user.ID)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	db := offlineDB{}
	suggestions := services.NewSuggestionService(db, nil, true)
	daily := services.NewDailyService(db, nil, time.UTC, nil)

	router := newRouter(routerDeps{
		suggestions:   handlers.NewSuggestionHandler(suggestions, daily),
		health:        handlers.NewHealthHandler(okChecker{}, nil),
		auth:          middleware.NewAuthMiddleware(authService),
		apiKey:        middleware.NewAPIKeyAuth("ingest-key", ""),
		aiLimiter:     middleware.NewRateLimiter(nil, 10, time.Hour, "ratelimit:ai:", userRateKey),
		security:      middleware.NewSecurityHeaders(false),
		requestLogger: middleware.NewRequestLogger(logging.New().SetOutput(&strings.Builder{})),
		metrics:       metrics.New(),
	})
	return router, token
}

func TestRouter_Routes(t *testing.T) {
	router, token := testRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   bool
		header map[string]string
		status int
	}{
		{"health", http.MethodGet, "/health", "", false, nil, http.StatusOK},
		{"live", http.MethodGet, "/live", "", false, nil, http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", false, nil, http.StatusOK},
		{"feed needs auth", http.MethodGet, "/suggestions/feed", "", false, nil, http.StatusUnauthorized},
		{"feed routed", http.MethodGet, "/suggestions/feed", "", true, nil, http.StatusInternalServerError},
		{"get by id routed", http.MethodGet, "/suggestions/12", "", true, nil, http.StatusInternalServerError},
		{"get bad id", http.MethodGet, "/suggestions/abc", "", true, nil, http.StatusBadRequest},
		{"by author bad id", http.MethodGet, "/suggestions/user/xyz", "", true, nil, http.StatusBadRequest},
		{"saved routed", http.MethodGet, "/suggestions/saved/me", "", true, nil, http.StatusInternalServerError},
		{"comments routed", http.MethodGet, "/suggestions/comment/3", "", true, nil, http.StatusInternalServerError},
		{"create empty text", http.MethodPost, "/suggestions", `{"text":"  "}`, true, nil, http.StatusBadRequest},
		{"react invalid", http.MethodPost, "/suggestions/react", `{"suggestion_id":1,"reaction":"meh"}`, true, nil, http.StatusBadRequest},
		{"generate needs auth", http.MethodPost, "/suggestions/generate", "", false, nil, http.StatusUnauthorized},
		{"ingest needs key", http.MethodPost, "/suggestions/ingest-daily", `{"text":"hi"}`, false, nil, http.StatusUnauthorized},
		{"ingest with key", http.MethodPost, "/suggestions/ingest-daily", `{"text":""}`, false, map[string]string{"X-API-KEY": "ingest-key"}, http.StatusBadRequest},
		{"wrong method", http.MethodDelete, "/suggestions/feed", "", true, nil, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.auth {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			testutil.AssertStatusCode(t, rr, tt.status)
			if rr.Header().Get("X-Request-ID") == "" {
				t.Fatal("expected request id header")
			}
			if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Fatal("expected security headers")
			}
		})
	}
}

func TestServerWriteTimeout(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AIConfig
		want time.Duration
	}{
		{
			name: "defaults",
			cfg:  config.AIConfig{ConnectTimeout: 10 * time.Second, ReadTimeout: 120 * time.Second, MaxAttempts: 3, RetryBackoff: 1200 * time.Millisecond},
			want: 390*time.Second + 3600*time.Millisecond + writeTimeoutSlack,
		},
		{
			name: "capped",
			cfg:  config.AIConfig{ConnectTimeout: 10 * time.Second, ReadTimeout: 300 * time.Second, MaxAttempts: 5},
			want: maxWriteTimeout,
		},
		{
			name: "floor",
			cfg:  config.AIConfig{},
			want: writeTimeoutSlack,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serverWriteTimeout(tt.cfg); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestUserRateKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/suggestions/generate", nil)
	if userRateKey(req) != "" {
		t.Fatal("expected empty key for anonymous request")
	}
	user := &models.User{ID: uuid.New()}
	req = req.WithContext(handlers.SetUserInContext(req.Context(), user))
	if got := userRateKey(req); got != "user:"+user.ID.String() {
		t.Fatalf("unexpected key %q", got)
	}
}
