package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"go.uber.org/zap"
)

type PubSubConfig struct {
	ProjectID string
	TopicName string
	PubID     string
}

// Event is the envelope of every message the service publishes.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	TenantID   string      `json:"tenant_id,omitempty"`
	LocationID string      `json:"location_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload,omitempty"`
}

type PubSubService struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	config *PubSubConfig
}

func NewPubSubService(ctx context.Context, cfg *PubSubConfig) (*PubSubService, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PubSub project ID is required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create PubSub client: %w", err)
	}

	topic := client.Topic(cfg.TopicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check if topic exists: %w", err)
	}

	if !exists {
		logger.Base().Info("Topic does not exist, creating", zap.String("topicname", cfg.TopicName))
		topic, err = client.CreateTopic(ctx, cfg.TopicName)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create topic %s: %w", cfg.TopicName, err)
		}
		logger.Base().Info("Topic created successfully", zap.String("topicname", cfg.TopicName))
	}

	return &PubSubService{
		client: client,
		topic:  topic,
		config: cfg,
	}, nil
}

// PublishEvent publishes evt as JSON and waits for the server ack. Missing ids and timestamps
// are filled in.
func (p *PubSubService) PublishEvent(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", evt.Type, err)
	}

	taskID := uuid.New().String()
	message := &pubsub.Message{
		Attributes: map[string]string{
			"name":       MessageName(p.config.PubID, taskID),
			"event_type": evt.Type,
		},
		Data: data,
	}

	result := p.topic.Publish(ctx, message)
	if _, err := result.Get(ctx); err != nil {
		logger.Error(ctx, "Failed to publish event",
			zap.String("event_type", evt.Type),
			zap.String("event_id", evt.ID),
			zap.String("task_id", taskID),
			zap.Error(err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logger.Info(ctx, "Published event",
		zap.String("event_type", evt.Type),
		zap.String("event_id", evt.ID),
		zap.String("task_id", taskID))
	return nil
}

// MessageName builds the "name" attribute subscriptions filter on: "<pubID>:<taskID>".
func MessageName(pubID, taskID string) string {
	prefix := strings.TrimSuffix(pubID, ":")
	if prefix == "" {
		return taskID
	}
	return prefix + ":" + taskID
}

func (p *PubSubService) Close() error {
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
