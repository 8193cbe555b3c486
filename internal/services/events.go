package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/mindio/internal/logging"
	"github.com/HammerMeetNail/mindio/internal/models"
)

// EngagementChannel is the Redis pub/sub channel engagement events go to.
const EngagementChannel = "suggestions:engagement"

// EventPublisher forwards engagement events to the gamification ledger.
type EventPublisher interface {
	Publish(ctx context.Context, event models.EngagementEvent) error
}

type RedisEventPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{client: client, channel: EngagementChannel}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, event models.EngagementEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding engagement event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing engagement event: %w", err)
	}
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.EngagementEvent) error { return nil }

// publishBestEffort never fails the caller; errors are only logged.
func publishBestEffort(ctx context.Context, publisher EventPublisher, event models.EngagementEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logging.FromContext(ctx).Warn("Failed to publish engagement event", map[string]interface{}{
			"type":          string(event.Type),
			"suggestion_id": event.SuggestionID,
			"error":         err.Error(),
		})
	}
}
