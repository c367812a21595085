package vapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sylonai/sylon-voice-service/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.VoiceAIConfig{APIKey: "test-key", BaseURL: server.URL + "/"})
}

func TestImportNumber(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/phone-number", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body ImportNumberRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "twilio", body.Provider)
		assert.Equal(t, "+14155551212", body.Number)
		assert.Equal(t, "AC123", body.TwilioAccountSID)
		assert.Equal(t, "secret", body.TwilioAuthToken)

		_ = json.NewEncoder(w).Encode(map[string]string{"id": "pn_1", "number": body.Number})
	})

	phone, err := client.ImportNumber(context.Background(), "+14155551212",
		config.TelephonyProfile{AccountSID: "AC123", AuthToken: "secret"}, "Bright Smile Dental")
	require.NoError(t, err)
	assert.Equal(t, "pn_1", phone.ID)
}

func TestImportNumberMissingID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"number":"+14155551212"}`))
	})

	_, err := client.ImportNumber(context.Background(), "+14155551212", config.TelephonyProfile{}, "")
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "id", schemaErr.Field)
}

func TestCreateAssistant(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assistant", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://hooks.example.com/call-end", body["serverUrl"])
		metadata := body["metadata"].(map[string]interface{})
		assert.Equal(t, "tenant_1", metadata[MetadataTenantID])
		assert.Equal(t, "loc_1", metadata[MetadataLocationID])
		voice := body["voice"].(map[string]interface{})
		assert.Equal(t, "voice_1", voice["voiceId"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"asst_1","name":"Bright Smile Dental - Inbound"}`))
	})

	assistant, err := client.CreateAssistant(context.Background(), &AssistantConfig{
		Name:      "Bright Smile Dental - Inbound",
		Voice:     VoiceConfig{Provider: "11labs", VoiceID: "voice_1"},
		ServerURL: "https://hooks.example.com/call-end",
		Metadata: map[string]string{
			MetadataTenantID:   "tenant_1",
			MetadataLocationID: "loc_1",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "asst_1", assistant.ID)
}

func TestCreateAssistantAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"voice not found"}`))
	})

	_, err := client.CreateAssistant(context.Background(), &AssistantConfig{Name: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "voice not found")
	assert.False(t, IsNotFound(err))
}

func TestLinkNumberToAssistant(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/phone-number/pn_1", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "asst_1", body["assistantId"])
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.LinkNumberToAssistant(context.Background(), "pn_1", "asst_1"))
}

func TestDeleteTreatsNotFoundAsDeleted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	})

	assert.NoError(t, client.DeleteAssistant(context.Background(), "asst_gone"))
	assert.NoError(t, client.DeleteImportedNumber(context.Background(), "pn_gone"))
}

func TestDeleteServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assistant/asst_1", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := client.DeleteAssistant(context.Background(), "asst_1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(config.VoiceAIConfig{})
	assert.Equal(t, defaultBaseURL, client.BaseURL)
	assert.Equal(t, defaultTimeout, client.HTTPClient.Timeout)
}
