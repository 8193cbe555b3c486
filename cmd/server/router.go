package main

import (
	"net/http"

	"github.com/HammerMeetNail/mindio/internal/handlers"
	"github.com/HammerMeetNail/mindio/internal/metrics"
	"github.com/HammerMeetNail/mindio/internal/middleware"
)

type routerDeps struct {
	suggestions   *handlers.SuggestionHandler
	health        *handlers.HealthHandler
	auth          *middleware.AuthMiddleware
	apiKey        *middleware.APIKeyAuth
	aiLimiter     *middleware.RateLimiter
	security      *middleware.SecurityHeaders
	requestLogger *middleware.RequestLogger
	metrics       *metrics.Metrics
}

func newRouter(d routerDeps) http.Handler {
	mux := http.NewServeMux()

	// Probes and metrics (no auth)
	mux.HandleFunc("GET /health", d.health.Health)
	mux.HandleFunc("GET /ready", d.health.Ready)
	mux.HandleFunc("GET /live", d.health.Live)
	mux.Handle("GET /metrics", d.metrics.Handler())

	user := func(fn http.HandlerFunc) http.Handler {
		return d.auth.RequireAuth(fn)
	}
	s := d.suggestions

	mux.Handle("POST /suggestions", user(s.Create))
	mux.Handle("GET /suggestions/feed", user(s.Feed))
	mux.Handle("GET /suggestions/daily", user(s.Daily))
	mux.Handle("GET /suggestions/user/{id}", user(s.ListByAuthor))
	mux.Handle("GET /suggestions/{id}", user(s.Get))
	mux.Handle("POST /suggestions/react", user(s.React))
	mux.Handle("POST /suggestions/save", user(s.Save))
	mux.Handle("POST /suggestions/comment", user(s.Comment))
	mux.Handle("GET /suggestions/comment/{id}", user(s.ListComments))
	mux.Handle("GET /suggestions/saved/me", user(s.ListSaved))

	// Rate limiting runs after RequireAuth so the limiter can key by user.
	// Over the limit, callers get today's fallback tip instead of a 429.
	mux.Handle("POST /suggestions/generate", d.auth.RequireAuth(
		d.aiLimiter.WithFallback(http.HandlerFunc(s.Generate), http.HandlerFunc(s.GenerateFallback)),
	))

	mux.Handle("POST /suggestions/ingest-daily", d.apiKey.Require(http.HandlerFunc(s.IngestDaily)))

	// Outermost first: request logger wraps everything.
	var handler http.Handler = mux
	handler = d.auth.Authenticate(handler)
	handler = d.security.Apply(handler)
	handler = d.metrics.Middleware(handler)
	handler = d.requestLogger.Apply(handler)
	return handler
}

// userRateKey keys the AI limiter by authenticated user.
func userRateKey(r *http.Request) string {
	if user := handlers.GetUserFromContext(r.Context()); user != nil {
		return "user:" + user.ID.String()
	}
	return ""
}
