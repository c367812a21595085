package config

import (
	"time"
)

// DefaultProfileName names the shared telephony credential set loaded from the environment.
const DefaultProfileName = "default"

// ServiceConfig holds the complete process configuration.
type ServiceConfig struct {
	Port       string
	InstanceID string
	LogEnv     string

	Telephony    TelephonyConfig
	VoiceAI      VoiceAIConfig
	Provisioning ProvisioningConfig
	Redis        RedisConfig
	PubSub       PubSubConfig
	Storage      StorageConfig
	RateLimit    RateLimitConfig

	// SecretKey signs dashboard API tokens. Empty disables API authentication (development).
	SecretKey string
}

// TelephonyProfile is a credential set for the telephony provider. It is passed per invocation
// so a tenant's sub-account credentials and the shared default never mix through globals.
type TelephonyProfile struct {
	Name       string `json:"name"`
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"-"`
}

// IsZero reports whether the profile carries no credentials.
func (p TelephonyProfile) IsZero() bool {
	return p.AccountSID == "" || p.AuthToken == ""
}

// TelephonyConfig holds telephony provider settings.
type TelephonyConfig struct {
	Default            TelephonyProfile
	SubAccountsEnabled bool
	CountryCode        string
}

// VoiceAIConfig holds voice-AI provider settings and the assistant defaults used at creation.
type VoiceAIConfig struct {
	APIKey        string
	BaseURL       string
	WebhookSecret string
	Timeout       time.Duration

	// CallReportURL receives post-call reports for every assistant created by activation.
	CallReportURL string

	ModelProvider       string
	Model               string
	VoiceProvider       string
	VoiceID             string
	TranscriberProvider string
	TranscriberModel    string
}

// ProvisioningConfig tunes the activation and deactivation orchestrators.
type ProvisioningConfig struct {
	DefaultAreaCode      string
	DefaultBusinessType  string
	CompensateOnHardStop bool
	LockTTL              time.Duration
}

// RedisConfig holds redis connection settings. Empty Host disables redis.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// PubSubConfig holds Pub/Sub settings. Empty ProjectID disables event publishing.
type PubSubConfig struct {
	ProjectID string
	TopicName string
	PubID     string
}

// StorageConfig holds transcript archive settings. Empty TranscriptBucket disables archiving.
type StorageConfig struct {
	TranscriptBucket string
}

// RateLimitConfig bounds provisioning requests per client address.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// TrustedProxyHops is how many proxies append to X-Forwarded-For. Zero ignores the header.
	TrustedProxyHops int
}

// DefaultServiceConfig returns the configuration used when no environment overrides exist.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Port: "8080",
		Telephony: TelephonyConfig{
			Default:     TelephonyProfile{Name: DefaultProfileName},
			CountryCode: "US",
		},
		VoiceAI: VoiceAIConfig{
			BaseURL:             "https://api.vapi.ai",
			Timeout:             30 * time.Second,
			CallReportURL:       "https://n8n.sylon.ai/webhook/vapi-call-end",
			ModelProvider:       "openai",
			Model:               "gpt-4o-mini",
			VoiceProvider:       "11labs",
			VoiceID:             "21m00Tcm4TlvDq8ikWAM",
			TranscriberProvider: "deepgram",
			TranscriberModel:    "nova-2",
		},
		Provisioning: ProvisioningConfig{
			DefaultAreaCode:      "415",
			DefaultBusinessType:  "healthcare",
			CompensateOnHardStop: true,
			LockTTL:              2 * time.Minute,
		},
		Redis: RedisConfig{
			Port: "6379",
		},
		PubSub: PubSubConfig{
			TopicName: "sylon-provisioning-events",
			PubID:     "sylon",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             5,
		},
	}
}
