package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sylonai/sylon-voice-service/internal/services/callreport"
	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"github.com/sylonai/sylon-voice-service/pkg/vapi"
	"go.uber.org/zap"
)

const maxWebhookBody = 5 << 20

// CallReportProcessor records end-of-call reports.
type CallReportProcessor interface {
	Process(ctx context.Context, report *callreport.CallReport) (*callreport.Outcome, error)
}

// VapiWebhookHandler handles events posted by the voice-AI provider
type VapiWebhookHandler struct {
	processor     CallReportProcessor
	webhookSecret string
}

// NewVapiWebhookHandler creates a new webhook handler. An empty secret disables verification.
func NewVapiWebhookHandler(processor CallReportProcessor, webhookSecret string) *VapiWebhookHandler {
	return &VapiWebhookHandler{
		processor:     processor,
		webhookSecret: webhookSecret,
	}
}

// HandleEvent godoc
// @Summary Voice-AI provider webhook
// @Description Record end-of-call reports as call logs and tenant usage; other events are acknowledged
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-Vapi-Secret header string false "Shared webhook secret"
// @Success 200 {object} map[string]interface{} "Event accepted"
// @Failure 400 {object} map[string]interface{} "Malformed event"
// @Failure 401 {object} map[string]interface{} "Secret mismatch"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /api/webhooks/vapi [post]
func (h *VapiWebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	if !h.verifySecret(r) {
		logger.Base().Warn("webhook secret mismatch", zap.String("remote_addr", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	eventType, err := callreport.EventType(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if eventType != callreport.EventTypeEndOfCallReport {
		logger.Base().Debug("ignoring webhook event", zap.String("event_type", eventType))
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "type": eventType})
		return
	}

	report, err := callreport.ParseCallReport(body)
	if err != nil {
		var schemaErr *vapi.SchemaError
		if errors.As(err, &schemaErr) {
			logger.Base().Warn("malformed call report", zap.Error(err))
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	outcome, err := h.processor.Process(r.Context(), report)
	if err != nil {
		logger.Error(r.Context(), "Failed to process call report", zap.String("call_id", report.CallID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to process call report")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"callId":    outcome.CallID,
		"duplicate": outcome.Duplicate,
	})
}

func (h *VapiWebhookHandler) verifySecret(r *http.Request) bool {
	if h.webhookSecret == "" {
		return true
	}
	got := r.Header.Get("X-Vapi-Secret")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) == 1
}

// SetupWebhookRoutes registers webhook routes on an API subrouter
func (h *VapiWebhookHandler) SetupWebhookRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks/vapi", h.HandleEvent).Methods("POST")
}
