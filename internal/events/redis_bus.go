package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"github.com/sylonai/sylon-voice-service/pkg/pubsub"
	"go.uber.org/zap"
)

const (
	// Channel carries provisioning and call events when Pub/Sub is not configured.
	Channel = "sylon:voice:events"
)

type channelPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// RedisBus publishes events on a Redis channel
type RedisBus struct {
	redisSvc channelPublisher
}

// NewRedisBus creates a new Redis-based event bus
func NewRedisBus(redisSvc channelPublisher) *RedisBus {
	return &RedisBus{redisSvc: redisSvc}
}

// PublishEvent sends evt to the channel, filling in a missing id and timestamp.
func (b *RedisBus) PublishEvent(ctx context.Context, evt pubsub.Event) error {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	logger.Base().Debug("Publishing event", zap.String("type", evt.Type), zap.String("event_id", evt.ID))
	if err := b.redisSvc.Publish(ctx, Channel, evt); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", evt.Type, err)
	}
	return nil
}
