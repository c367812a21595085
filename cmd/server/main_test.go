package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "REDIS_HOST", "DEFAULT_AREA_CODE", "COMPENSATE_ON_HARD_STOP", "TWILIO_SUBACCOUNTS_ENABLED", "RATE_LIMIT_RPS"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfigFromEnv()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "415", cfg.Provisioning.DefaultAreaCode)
	assert.Equal(t, "healthcare", cfg.Provisioning.DefaultBusinessType)
	assert.True(t, cfg.Provisioning.CompensateOnHardStop)
	assert.False(t, cfg.Telephony.SubAccountsEnabled)
	assert.Equal(t, "default", cfg.Telephony.Default.Name)
	assert.Empty(t, cfg.Redis.Host)
	assert.Equal(t, 1.0, cfg.RateLimit.RequestsPerSecond)
	assert.NotEmpty(t, cfg.InstanceID)
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "token")
	t.Setenv("TWILIO_SUBACCOUNTS_ENABLED", "true")
	t.Setenv("VAPI_API_KEY", "vapi-key")
	t.Setenv("DEFAULT_AREA_CODE", "212")
	t.Setenv("COMPENSATE_ON_HARD_STOP", "false")
	t.Setenv("LOCATION_LOCK_TTL_SECONDS", "30")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")
	t.Setenv("TRUSTED_PROXY_HOPS", "2")

	cfg := LoadConfigFromEnv()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "AC123", cfg.Telephony.Default.AccountSID)
	assert.Equal(t, "token", cfg.Telephony.Default.AuthToken)
	assert.True(t, cfg.Telephony.SubAccountsEnabled)
	assert.Equal(t, "vapi-key", cfg.VoiceAI.APIKey)
	assert.Equal(t, "212", cfg.Provisioning.DefaultAreaCode)
	assert.False(t, cfg.Provisioning.CompensateOnHardStop)
	assert.Equal(t, 30*time.Second, cfg.Provisioning.LockTTL)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, 2, cfg.RateLimit.TrustedProxyHops)
}
