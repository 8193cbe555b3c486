package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/mindio/internal/logging"
	"github.com/HammerMeetNail/mindio/internal/metrics"
	"github.com/HammerMeetNail/mindio/internal/models"
	"github.com/HammerMeetNail/mindio/internal/textutil"
)

const (
	DailyInstruction    = "Produce one short daily suggestion for this profile."
	PersonalInstruction = "Produce one short personal suggestion for this profile."

	// unixEpochOrdinal is the proleptic Gregorian ordinal of 1970-01-01,
	// counting 0001-01-01 as day 1.
	unixEpochOrdinal = 719163
)

var ErrNoSuggestionsAvailable = errors.New("no suggestions available")

// TipGenerator produces one sanitized, validated suggestion text.
type TipGenerator interface {
	GenerateTip(ctx context.Context, userID *uuid.UUID, instruction string) (string, error)
}

type DailyService struct {
	db        DB
	generator TipGenerator
	location  *time.Location
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewDailyService(db DB, generator TipGenerator, location *time.Location, m *metrics.Metrics) *DailyService {
	if location == nil {
		location = time.UTC
	}
	return &DailyService{
		db:        db,
		generator: generator,
		location:  location,
		metrics:   m,
		now:       time.Now,
	}
}

// Today returns the current civil date in the configured time zone, as UTC midnight.
func (s *DailyService) Today() time.Time {
	return civilDate(s.now().In(s.location))
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayOrdinal returns the proleptic Gregorian ordinal of the day's civil date.
func DayOrdinal(day time.Time) int64 {
	return civilDate(day).Unix()/86400 + unixEpochOrdinal
}

// FallbackIndex picks a stable position in a pool of size n for the day.
func FallbackIndex(day time.Time, n int) int {
	if n <= 0 {
		return 0
	}
	return int(DayOrdinal(day) % int64(n))
}

// Resolve returns today's tip. A stored mapping wins; otherwise a tip is
// generated and mapped to today; if that fails a deterministic fallback is
// served without writing anything.
func (s *DailyService) Resolve(ctx context.Context) (*models.DailyTip, error) {
	day := s.Today()

	suggestion, err := s.lookup(ctx, day)
	if err == nil {
		return s.tip(suggestion, day, models.DailyPathCached), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		logging.FromContext(ctx).Warn("Daily tip lookup failed, serving fallback", map[string]interface{}{
			"day":   day.Format(models.DateLayout),
			"error": err.Error(),
		})
		return s.fallbackTip(ctx, day)
	}

	if s.generator != nil {
		text, genErr := s.generator.GenerateTip(ctx, nil, DailyInstruction)
		if genErr == nil {
			suggestion, err = s.storeForDay(ctx, day, nil, text, models.SourceAI)
			if err == nil {
				return s.tip(suggestion, day, models.DailyPathGenerated), nil
			}
			logging.FromContext(ctx).Error("Failed to store generated daily tip", map[string]interface{}{
				"day":   day.Format(models.DateLayout),
				"error": err.Error(),
			})
		} else {
			logging.FromContext(ctx).Warn("Daily tip generation failed, serving fallback", map[string]interface{}{
				"day":   day.Format(models.DateLayout),
				"error": genErr.Error(),
			})
		}
	}

	return s.fallbackTip(ctx, day)
}

func (s *DailyService) tip(suggestion *models.Suggestion, day time.Time, path models.DailyPath) *models.DailyTip {
	s.metrics.ObserveDailyResolution(string(path))
	return &models.DailyTip{Suggestion: suggestion, Day: day, Path: path}
}

func (s *DailyService) fallbackTip(ctx context.Context, day time.Time) (*models.DailyTip, error) {
	suggestion, err := s.Fallback(ctx, day)
	if err != nil {
		return nil, err
	}
	return s.tip(suggestion, day, models.DailyPathFallback), nil
}

func (s *DailyService) lookup(ctx context.Context, day time.Time) (*models.Suggestion, error) {
	return scanSuggestion(s.db.QueryRow(ctx,
		`SELECT `+joinedSuggestionColumns+`
		 FROM global_daily_suggestions g
		 JOIN suggestions s ON s.id = g.suggestion_id
		 WHERE g.day = $1`,
		day,
	))
}

// Fallback selects an approved suggestion for the day, preferring AI and
// system suggestions when any exist. The choice is stable for a given pool.
func (s *DailyService) Fallback(ctx context.Context, day time.Time) (*models.Suggestion, error) {
	var preferred, total int
	err := s.db.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE source IN ('ai', 'system')),
		   COUNT(*)
		 FROM suggestions
		 WHERE is_approved = true`,
	).Scan(&preferred, &total)
	if err != nil {
		return nil, fmt.Errorf("counting fallback pool: %w", err)
	}
	if total == 0 {
		return nil, ErrNoSuggestionsAvailable
	}

	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE is_approved = true`
	size := total
	if preferred > 0 {
		query += ` AND source IN ('ai', 'system')`
		size = preferred
	}
	query += ` ORDER BY id ASC OFFSET $1 LIMIT 1`

	suggestion, err := scanSuggestion(s.db.QueryRow(ctx, query, FallbackIndex(day, size)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSuggestionsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("selecting fallback suggestion: %w", err)
	}
	return suggestion, nil
}

// storeForDay inserts an approved suggestion and points the day at it in one
// transaction. An existing mapping for the day is overwritten.
func (s *DailyService) storeForDay(ctx context.Context, day time.Time, userID *uuid.UUID, text string, source models.SuggestionSource) (*models.Suggestion, error) {
	text, err := textutil.Clean(text)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin daily transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	suggestion, err := insertSuggestion(ctx, tx, userID, text, true, source)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO global_daily_suggestions (day, suggestion_id, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (day)
		 DO UPDATE SET suggestion_id = EXCLUDED.suggestion_id, updated_at = NOW()`,
		day, suggestion.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting daily mapping: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit daily transaction: %w", err)
	}
	committed = true

	return suggestion, nil
}

// Ingest stores an externally supplied tip and makes it today's tip,
// replacing whatever was mapped before.
func (s *DailyService) Ingest(ctx context.Context, text string) (*models.IngestResult, error) {
	text, err := textutil.Clean(text)
	if err != nil {
		return nil, err
	}

	day := s.Today()
	suggestion, err := s.storeForDay(ctx, day, nil, text, models.SourceSystem)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("Daily tip ingested", map[string]interface{}{
		"day":           day.Format(models.DateLayout),
		"suggestion_id": suggestion.ID,
	})

	return &models.IngestResult{
		Status:       "ok",
		Day:          day.Format(models.DateLayout),
		SuggestionID: suggestion.ID,
	}, nil
}

// GenerateForUser produces a personal tip for the user. When generation or
// storage fails, the day's fallback suggestion is returned instead.
func (s *DailyService) GenerateForUser(ctx context.Context, userID uuid.UUID) (*models.GeneratedTip, error) {
	if s.generator != nil {
		text, err := s.generator.GenerateTip(ctx, &userID, PersonalInstruction)
		if err == nil {
			var suggestion *models.Suggestion
			if text, err = textutil.Clean(text); err == nil {
				suggestion, err = insertSuggestion(ctx, s.db, &userID, text, true, models.SourceAI)
			}
			if err == nil {
				return &models.GeneratedTip{Suggestion: suggestion}, nil
			}
			logging.FromContext(ctx).Error("Failed to store generated tip", map[string]interface{}{
				"user_id": userID.String(),
				"error":   err.Error(),
			})
		} else {
			logging.FromContext(ctx).Warn("Personal tip generation failed, serving fallback", map[string]interface{}{
				"user_id": userID.String(),
				"error":   err.Error(),
			})
		}
	}

	return s.TodayFallback(ctx)
}

// TodayFallback returns today's fallback suggestion marked as such, without
// calling the generator.
func (s *DailyService) TodayFallback(ctx context.Context) (*models.GeneratedTip, error) {
	suggestion, err := s.Fallback(ctx, s.Today())
	if err != nil {
		return nil, err
	}
	return &models.GeneratedTip{Suggestion: suggestion, IsFallback: true}, nil
}
