package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sylonai/sylon-voice-service/internal/config"
	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.vapi.ai"
	defaultTimeout = 30 * time.Second
	// maxErrorBody bounds how much of a failed response is kept in APIError.
	maxErrorBody = 2048
)

// Client handles communication with the VAPI REST API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new VAPI API client
func NewClient(cfg config.VoiceAIConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if cfg.APIKey == "" {
		logger.Base().Warn("VAPI API key not configured, voice-AI calls will be rejected")
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  cfg.APIKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ImportNumber imports a Twilio number using the given account credentials.
func (c *Client) ImportNumber(ctx context.Context, number string, creds config.TelephonyProfile, name string) (*PhoneNumber, error) {
	req := ImportNumberRequest{
		Provider:         "twilio",
		Number:           number,
		TwilioAccountSID: creds.AccountSID,
		TwilioAuthToken:  creds.AuthToken,
		Name:             name,
	}

	var phone PhoneNumber
	if err := c.do(ctx, "import number", http.MethodPost, "/phone-number", req, &phone); err != nil {
		return nil, err
	}
	if phone.ID == "" {
		return nil, &SchemaError{Operation: "import number", Field: "id"}
	}

	logger.Info(ctx, "Imported number into VAPI", zap.String("number", number), zap.String("import_id", phone.ID))
	return &phone, nil
}

// DeleteImportedNumber removes an imported number. Already deleted numbers are not an error.
func (c *Client) DeleteImportedNumber(ctx context.Context, importID string) error {
	return c.deleteResource(ctx, "delete number", "/phone-number/"+importID)
}

// CreateAssistant creates an assistant from cfg.
func (c *Client) CreateAssistant(ctx context.Context, cfg *AssistantConfig) (*Assistant, error) {
	var assistant Assistant
	if err := c.do(ctx, "create assistant", http.MethodPost, "/assistant", cfg, &assistant); err != nil {
		return nil, err
	}
	if assistant.ID == "" {
		return nil, &SchemaError{Operation: "create assistant", Field: "id"}
	}

	logger.Info(ctx, "Created VAPI assistant", zap.String("assistant_id", assistant.ID), zap.String("name", cfg.Name))
	return &assistant, nil
}

// DeleteAssistant removes an assistant. Already deleted assistants are not an error.
func (c *Client) DeleteAssistant(ctx context.Context, assistantID string) error {
	return c.deleteResource(ctx, "delete assistant", "/assistant/"+assistantID)
}

// LinkNumberToAssistant routes calls on an imported number to an assistant.
func (c *Client) LinkNumberToAssistant(ctx context.Context, importID, assistantID string) error {
	return c.do(ctx, "link number", http.MethodPatch, "/phone-number/"+importID,
		linkNumberRequest{AssistantID: assistantID}, nil)
}

func (c *Client) deleteResource(ctx context.Context, operation, path string) error {
	err := c.do(ctx, operation, http.MethodDelete, path, nil, nil)
	if IsNotFound(err) {
		logger.Warn(ctx, "VAPI resource already deleted", zap.String("path", path))
		return nil
	}
	return err
}

// do sends a JSON request and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", operation, err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", operation, err)
	}

	logger.Debug(ctx, "VAPI API response",
		zap.String("operation", operation),
		zap.Int("status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := string(bodyBytes)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return &APIError{Operation: operation, StatusCode: resp.StatusCode, Body: text}
	}

	if out == nil {
		return nil
	}
	if len(bodyBytes) == 0 {
		return &SchemaError{Operation: operation, Field: "body"}
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}
