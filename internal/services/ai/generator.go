package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/mindio/internal/config"
	"github.com/HammerMeetNail/mindio/internal/logging"
	"github.com/HammerMeetNail/mindio/internal/metrics"
	"github.com/HammerMeetNail/mindio/internal/models"
	"github.com/HammerMeetNail/mindio/internal/services"
	"github.com/HammerMeetNail/mindio/internal/textutil"
)

const (
	purposeDaily    = "daily"
	purposePersonal = "personal"

	statusSuccess       = "success"
	statusError         = "error"
	statusNotConfigured = "not_configured"
	statusInvalidOutput = "invalid_output"

	usageLogTimeout = 2 * time.Second
)

// stubTips are served instead of calling the webhook when AI_STUB is set.
var stubTips = []string{
	"Take a ten minute walk outside and notice three things you can hear.",
	"Drink a glass of water and stretch your shoulders for one minute.",
	"Write down one thing that went well today, however small.",
	"Put your phone away for the next half hour and breathe slowly.",
	"Send a short message to someone you have not talked to in a while.",
}

// ProfileProvider supplies the profile used to personalise prompts.
type ProfileProvider interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (models.UserProfile, error)
}

type replier interface {
	Configured() bool
	Reply(ctx context.Context, req Request) (string, int, error)
}

// Generator turns an instruction into one clean, storable suggestion.
type Generator struct {
	client   replier
	profiles ProfileProvider
	db       services.DB
	metrics  *metrics.Metrics
	locale   string
	stub     bool
	now      func() time.Time
}

func NewGenerator(cfg config.AIConfig, client *Client, profiles ProfileProvider, db services.DB, m *metrics.Metrics) *Generator {
	g := &Generator{
		profiles: profiles,
		db:       db,
		metrics:  m,
		locale:   cfg.Locale,
		stub:     cfg.Stub,
		now:      time.Now,
	}
	if client != nil {
		g.client = client
	}
	return g
}

// GenerateTip asks the webhook for a suggestion. A nil userID means the
// global daily tip. Every failure wraps ErrGenerationFailed.
func (g *Generator) GenerateTip(ctx context.Context, userID *uuid.UUID, instruction string) (string, error) {
	start := time.Now()
	purpose := purposeDaily
	if userID != nil {
		purpose = purposePersonal
	}

	if g.stub {
		tip := stubTips[services.DayOrdinal(g.now())%int64(len(stubTips))]
		g.record(userID, purpose, 0, start, statusSuccess)
		return tip, nil
	}

	if g.client == nil || !g.client.Configured() {
		logging.FromContext(ctx).Warn("AI webhook URL missing; generation unavailable", map[string]interface{}{
			"purpose": purpose,
		})
		g.record(userID, purpose, 0, start, statusNotConfigured)
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, ErrNotConfigured)
	}

	profile := g.profileFor(ctx, userID)
	req := Request{
		Message:     instruction,
		History:     []HistoryMessage{},
		UserContext: BuildUserContext(profile, g.locale),
		UserData:    userDataFor(profile),
	}

	reply, attempts, err := g.client.Reply(ctx, req)
	if err != nil {
		g.record(userID, purpose, attempts, start, statusError)
		return "", err
	}

	text, err := textutil.Clean(reply)
	if err != nil {
		logging.FromContext(ctx).Warn("AI webhook reply rejected", map[string]interface{}{
			"purpose":      purpose,
			"reply_length": len([]rune(reply)),
			"error":        err.Error(),
		})
		g.record(userID, purpose, attempts, start, statusInvalidOutput)
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	logging.FromContext(ctx).Info("Generated suggestion", map[string]interface{}{
		"purpose":     purpose,
		"attempts":    attempts,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	g.record(userID, purpose, attempts, start, statusSuccess)
	return text, nil
}

func (g *Generator) profileFor(ctx context.Context, userID *uuid.UUID) models.UserProfile {
	if userID == nil || g.profiles == nil {
		return models.DefaultUserProfile()
	}
	profile, err := g.profiles.GetProfile(ctx, *userID)
	if err != nil {
		logging.FromContext(ctx).Warn("Failed to load user profile; using defaults", map[string]interface{}{
			"user_id": userID.String(),
			"error":   err.Error(),
		})
		return models.DefaultUserProfile()
	}
	return profile
}

func (g *Generator) record(userID *uuid.UUID, purpose string, attempts int, start time.Time, status string) {
	elapsed := time.Since(start)
	g.metrics.ObserveGeneration(purpose, status, attempts, elapsed)
	g.logUsageWithTimeout(userID, purpose, attempts, elapsed, status)
}

func (g *Generator) logUsage(ctx context.Context, userID *uuid.UUID, purpose string, attempts int, elapsed time.Duration, status string) {
	if g.db == nil {
		return
	}
	_, err := g.db.Exec(ctx, `
        INSERT INTO ai_generation_logs (user_id, purpose, attempts, duration_ms, status)
        VALUES ($1, $2, $3, $4, $5)
    `, userID, purpose, attempts, elapsed.Milliseconds(), status)
	if err != nil {
		logging.Error("Failed to log AI usage", map[string]interface{}{
			"error":   err.Error(),
			"purpose": purpose,
		})
	}
}

// logUsageWithTimeout runs detached from the request context so a cancelled
// request still gets its usage row.
func (g *Generator) logUsageWithTimeout(userID *uuid.UUID, purpose string, attempts int, elapsed time.Duration, status string) {
	if g.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), usageLogTimeout)
	defer cancel()
	g.logUsage(ctx, userID, purpose, attempts, elapsed, status)
}

var _ services.TipGenerator = (*Generator)(nil)
