// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/HammerMeetNail/mindio/internal/logging"
	"github.com/HammerMeetNail/mindio/internal/models"
)

const defaultRunTimeout = 10 * time.Minute

// DailyResolver resolves and persists the tip for the current day.
type DailyResolver interface {
	Resolve(ctx context.Context) (*models.DailyTip, error)
}

// DailyWarmup resolves the tip of the day shortly after local midnight so the
// first request of the day normally hits the cached mapping.
type DailyWarmup struct {
	cron     *cron.Cron
	resolver DailyResolver
	logger   *logging.Logger
	timeout  time.Duration
	location *time.Location
}

// NewDailyWarmup registers the job under a standard five-field cron spec
// evaluated in loc.
func NewDailyWarmup(resolver DailyResolver, spec string, loc *time.Location, timeout time.Duration, logger *logging.Logger) (*DailyWarmup, error) {
	if logger == nil {
		logger = logging.Default
	}
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}

	adapter := cronLogger{logger: logger}
	w := &DailyWarmup{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		resolver: resolver,
		logger:   logger,
		timeout:  timeout,
		location: loc,
	}

	if _, err := w.cron.AddFunc(spec, func() { _ = w.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("parsing daily tip schedule %q: %w", spec, err)
	}
	return w, nil
}

func (w *DailyWarmup) Start() {
	w.cron.Start()
}

// Stop halts scheduling and waits for a running job or ctx, whichever ends first.
func (w *DailyWarmup) Stop(ctx context.Context) error {
	done := w.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports the next scheduled run.
func (w *DailyWarmup) Next() time.Time {
	entries := w.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now().In(w.location))
}

// RunOnce resolves today's tip once.
func (w *DailyWarmup) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	tip, err := w.resolver.Resolve(ctx)
	if err != nil {
		w.logger.Error("Daily tip warm-up failed", map[string]interface{}{
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return err
	}

	w.logger.Info("Daily tip warmed", map[string]interface{}{
		"day":           tip.Day.Format(models.DateLayout),
		"suggestion_id": tip.Suggestion.ID,
		"path":          string(tip.Path),
		"duration_ms":   time.Since(start).Milliseconds(),
	})
	return nil
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug("cron: "+msg, kvFields(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := kvFields(keysAndValues)
	fields["error"] = err.Error()
	c.logger.Error("cron: "+msg, fields)
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
