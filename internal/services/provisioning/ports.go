package provisioning

import (
	"context"

	"github.com/sylonai/sylon-voice-service/internal/config"
	"github.com/sylonai/sylon-voice-service/pkg/pubsub"
	"github.com/sylonai/sylon-voice-service/pkg/twilio"
	"github.com/sylonai/sylon-voice-service/pkg/vapi"
)

// TelephonyProvider is the subset of the telephony client the orchestrators use.
type TelephonyProvider interface {
	DefaultProfile() config.TelephonyProfile
	SearchNumbers(ctx context.Context, profile config.TelephonyProfile, areaCode string, limit int) ([]twilio.AvailableNumber, error)
	PurchaseNumber(ctx context.Context, profile config.TelephonyProfile, phoneNumber, friendlyName string) (*twilio.PurchasedNumber, error)
	ReleaseNumber(ctx context.Context, profile config.TelephonyProfile, numberSid string) error
	CreateSubAccount(ctx context.Context, friendlyName string) (config.TelephonyProfile, error)
}

// VoiceAIProvider is the subset of the voice-AI client the orchestrators use.
type VoiceAIProvider interface {
	ImportNumber(ctx context.Context, number string, creds config.TelephonyProfile, name string) (*vapi.PhoneNumber, error)
	DeleteImportedNumber(ctx context.Context, importID string) error
	CreateAssistant(ctx context.Context, cfg *vapi.AssistantConfig) (*vapi.Assistant, error)
	DeleteAssistant(ctx context.Context, assistantID string) error
	LinkNumberToAssistant(ctx context.Context, importID, assistantID string) error
}

// EventPublisher publishes provisioning events. Optional.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt pubsub.Event) error
}

// Event types published after each run.
const (
	EventLocationActivated        = "location.activated"
	EventLocationActivationFailed = "location.activation_failed"
	EventLocationDeactivated      = "location.deactivated"
)
