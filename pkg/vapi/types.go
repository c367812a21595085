package vapi

import (
	"errors"
	"fmt"
	"net/http"
)

// ImportNumberRequest registers an externally owned telephony number with the provider.
type ImportNumberRequest struct {
	Provider         string `json:"provider"`
	Number           string `json:"number"`
	TwilioAccountSID string `json:"twilioAccountSid"`
	TwilioAuthToken  string `json:"twilioAuthToken"`
	Name             string `json:"name,omitempty"`
}

// PhoneNumber is an imported number as the provider returns it.
type PhoneNumber struct {
	ID          string `json:"id"`
	Number      string `json:"number"`
	Provider    string `json:"provider"`
	AssistantID string `json:"assistantId,omitempty"`
	Name        string `json:"name,omitempty"`
}

// Message is one seeded model message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelConfig selects the language model and its system prompt.
type ModelConfig struct {
	Provider string    `json:"provider"`
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// VoiceConfig selects the text-to-speech voice.
type VoiceConfig struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

// TranscriberConfig selects the speech-to-text engine.
type TranscriberConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// AssistantConfig is the body of an assistant create request.
type AssistantConfig struct {
	Name           string            `json:"name"`
	Model          ModelConfig       `json:"model"`
	Voice          VoiceConfig       `json:"voice"`
	Transcriber    TranscriberConfig `json:"transcriber"`
	FirstMessage   string            `json:"firstMessage"`
	EndCallMessage string            `json:"endCallMessage"`
	ServerURL      string            `json:"serverUrl"`
	Metadata       map[string]string `json:"metadata"`
}

// Assistant is a created assistant as the provider returns it.
type Assistant struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type linkNumberRequest struct {
	AssistantID string `json:"assistantId"`
}

// Metadata keys set on every assistant so call reports can be attributed.
const (
	MetadataTenantID     = "tenant_id"
	MetadataLocationID   = "location_id"
	MetadataLocationName = "location_name"
)

// SchemaError reports a provider response that is missing a required field.
type SchemaError struct {
	Operation string
	Field     string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("vapi %s: response missing required field %q", e.Operation, e.Field)
}

// APIError reports a non-2xx provider response.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vapi %s failed: status=%d, body=%s", e.Operation, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
