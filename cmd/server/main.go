package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/mindio/internal/config"
	"github.com/HammerMeetNail/mindio/internal/database"
	"github.com/HammerMeetNail/mindio/internal/handlers"
	"github.com/HammerMeetNail/mindio/internal/logging"
	"github.com/HammerMeetNail/mindio/internal/metrics"
	"github.com/HammerMeetNail/mindio/internal/middleware"
	"github.com/HammerMeetNail/mindio/internal/scheduler"
	"github.com/HammerMeetNail/mindio/internal/services"
	"github.com/HammerMeetNail/mindio/internal/services/ai"
	"github.com/HammerMeetNail/mindio/migrations"
)

const (
	shutdownTimeout   = 30 * time.Second
	writeTimeoutSlack = 30 * time.Second
	maxWriteTimeout   = 10 * time.Minute
)

func main() {
	var err error
	if len(os.Args) > 2 && os.Args[1] == "token" {
		err = issueToken(os.Args[2])
	} else {
		err = run()
	}
	if err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

// issueToken prints a bearer token for an existing user id. Development aid.
func issueToken(rawID string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("parsing user id: %w", err)
	}
	token, err := services.NewAuthService(nil, cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL).IssueToken(userID)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func run() error {
	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := logging.ParseLevel(cfg.Server.LogLevel)
	if cfg.Server.Debug {
		level = logging.LevelDebug
	}
	logger.SetLevel(level)
	logging.SetDefaultLevel(level)

	location, err := cfg.Suggestions.Location()
	if err != nil {
		return fmt.Errorf("loading time zone: %w", err)
	}

	logger.Info("Starting mindio suggestion server", map[string]interface{}{
		"env":      cfg.Server.Environment,
		"timezone": location.String(),
	})
	if cfg.Auth.UsesDevelopmentSecret() {
		logger.Warn("JWT_SECRET is unset; signing tokens with the built-in development secret")
	}

	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN(), database.DefaultPoolOptions())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), migrations.FS)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	// Redis is optional: without it rate limiting fails open and engagement
	// events are not published.
	var redisChecker handlers.HealthChecker
	var events services.EventPublisher
	redisDB, err := database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable; continuing without rate limiting and events", map[string]interface{}{
			"addr":  cfg.Redis.Addr(),
			"error": err.Error(),
		})
	} else {
		defer func() { _ = redisDB.Close() }()
		redisChecker = redisDB
		events = services.NewRedisEventPublisher(redisDB.Client)
		logger.Info("Connected to Redis", map[string]interface{}{"addr": cfg.Redis.Addr()})
	}

	m := metrics.New()
	dbAdapter := services.NewPoolAdapter(db.Pool)

	userService := services.NewUserService(dbAdapter)
	profileService := services.NewProfileService(dbAdapter)
	authService := services.NewAuthService(userService, cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
	suggestionService := services.NewSuggestionService(dbAdapter, events, cfg.Suggestions.AutoApprove)

	aiClient := ai.NewClient(cfg.AI)
	if !aiClient.Configured() && !cfg.AI.Stub {
		logger.Warn("AI_WEBHOOK_URL not set; daily tips will use the fallback pool")
	}
	generator := ai.NewGenerator(cfg.AI, aiClient, profileService, dbAdapter, m)
	dailyService := services.NewDailyService(dbAdapter, generator, location, m)

	var warmup *scheduler.DailyWarmup
	if cfg.Suggestions.DailyTipCron != "" {
		warmup, err = scheduler.NewDailyWarmup(dailyService, cfg.Suggestions.DailyTipCron, location, cfg.AI.CallBudget()+writeTimeoutSlack, logger)
		if err != nil {
			return err
		}
		warmup.Start()
		logger.Info("Daily tip warm-up scheduled", map[string]interface{}{
			"cron": cfg.Suggestions.DailyTipCron,
			"next": warmup.Next().Format(time.RFC3339),
		})
	}

	apiKey := middleware.NewAPIKeyAuth(cfg.Suggestions.IngestAPIKey, cfg.Suggestions.IngestAPIKeyHash)
	if !apiKey.Configured() {
		logger.Warn("INGEST_API_KEY not set; daily ingestion is disabled")
	}

	var redisClient *redis.Client
	if redisDB != nil {
		redisClient = redisDB.Client
	}
	handler := newRouter(routerDeps{
		suggestions:   handlers.NewSuggestionHandler(suggestionService, dailyService),
		health:        handlers.NewHealthHandler(db, redisChecker),
		auth:          middleware.NewAuthMiddleware(authService),
		apiKey:        apiKey,
		aiLimiter:     middleware.NewRateLimiter(redisClient, int64(cfg.AI.RateLimit), cfg.AI.RateLimitWindow, "ratelimit:ai:", userRateKey),
		security:      middleware.NewSecurityHeaders(cfg.Server.Secure),
		requestLogger: middleware.NewRequestLogger(logger),
		metrics:       m,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: serverWriteTimeout(cfg.AI),
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if warmup != nil {
			if err := warmup.Stop(ctx); err != nil {
				logger.Warn("Daily tip warm-up did not stop cleanly", map[string]interface{}{"error": err.Error()})
			}
		}

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr":          addr,
		"write_timeout": server.WriteTimeout.String(),
	})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

// serverWriteTimeout leaves room for a full webhook retry sequence so a
// generate request answers with a body instead of a dropped connection.
func serverWriteTimeout(aiCfg config.AIConfig) time.Duration {
	timeout := aiCfg.CallBudget() + writeTimeoutSlack
	if timeout > maxWriteTimeout {
		return maxWriteTimeout
	}
	if timeout < writeTimeoutSlack {
		return writeTimeoutSlack
	}
	return timeout
}
