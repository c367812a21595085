package provisioning

import (
	"context"
	"time"

	"github.com/sylonai/sylon-voice-service/internal/config"
	"github.com/sylonai/sylon-voice-service/internal/repository"
	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"github.com/sylonai/sylon-voice-service/pkg/pubsub"
	"go.uber.org/zap"
)

// Dependencies are the collaborators shared by both orchestrators.
type Dependencies struct {
	Repos     repository.RepositoryManager
	Telephony TelephonyProvider
	VoiceAI   VoiceAIProvider
	Locker    Locker
	// Events is optional.
	Events EventPublisher
}

// Service runs activation and deactivation for tenant locations.
type Service struct {
	repos     repository.RepositoryManager
	telephony TelephonyProvider
	voice     VoiceAIProvider
	locker    Locker
	events    EventPublisher

	provisioning       config.ProvisioningConfig
	assistant          config.VoiceAIConfig
	subAccountsEnabled bool

	now func() time.Time
}

// NewService creates a provisioning service
func NewService(deps Dependencies, cfg *config.ServiceConfig) *Service {
	locker := deps.Locker
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Service{
		repos:              deps.Repos,
		telephony:          deps.Telephony,
		voice:              deps.VoiceAI,
		locker:             locker,
		events:             deps.Events,
		provisioning:       cfg.Provisioning,
		assistant:          cfg.VoiceAI,
		subAccountsEnabled: cfg.Telephony.SubAccountsEnabled,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// publish sends an event when a publisher is configured. Failures are logged only.
func (s *Service) publish(ctx context.Context, eventType, tenantID, locationID string, payload interface{}) {
	if s.events == nil {
		return
	}
	err := s.events.PublishEvent(ctx, pubsub.Event{
		Type:       eventType,
		TenantID:   tenantID,
		LocationID: locationID,
		OccurredAt: s.now(),
		Payload:    payload,
	})
	if err != nil {
		logger.Warn(ctx, "Failed to publish provisioning event", zap.String("event_type", eventType), zap.Error(err))
	}
}
