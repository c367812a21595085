package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sylonai/sylon-voice-service/internal/services/callreport"
)

const endOfCallBody = `{
	"message": {
		"type": "end-of-call-report",
		"endedReason": "customer-ended-call",
		"durationSeconds": 61,
		"cost": 0.12,
		"call": {"id": "call_1", "assistantId": "asst_1", "type": "inboundPhoneCall"}
	}
}`

func webhookRouter(p *fakeProcessor, secret string) *mux.Router {
	router := mux.NewRouter()
	NewVapiWebhookHandler(p, secret).SetupWebhookRoutes(router)
	return router
}

func TestWebhookProcessesEndOfCallReport(t *testing.T) {
	p := &fakeProcessor{}

	rec := doRequest(t, webhookRouter(p, ""), http.MethodPost, "/webhooks/vapi", endOfCallBody, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "call_1", body["callId"])
	assert.Equal(t, false, body["duplicate"])

	require.Len(t, p.reports, 1)
	assert.Equal(t, "asst_1", p.reports[0].AssistantID)
	assert.Equal(t, 61, p.reports[0].DurationSeconds)
	assert.Equal(t, int64(12), p.reports[0].CostCents)
}

func TestWebhookReportsDuplicate(t *testing.T) {
	p := &fakeProcessor{outcome: &callreport.Outcome{CallID: "call_1", Duplicate: true}}

	rec := doRequest(t, webhookRouter(p, ""), http.MethodPost, "/webhooks/vapi", endOfCallBody, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["duplicate"])
}

func TestWebhookAcknowledgesOtherEvents(t *testing.T) {
	p := &fakeProcessor{}

	rec := doRequest(t, webhookRouter(p, ""), http.MethodPost, "/webhooks/vapi", `{"message":{"type":"status-update"}}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "status-update", body["type"])
	assert.Empty(t, p.reports)
}

func TestWebhookRejectsReportWithoutCallID(t *testing.T) {
	p := &fakeProcessor{}

	rec := doRequest(t, webhookRouter(p, ""), http.MethodPost, "/webhooks/vapi", `{"message":{"type":"end-of-call-report"}}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "call.id")
	assert.Empty(t, p.reports)
}

func TestWebhookRejectsInvalidJSON(t *testing.T) {
	rec := doRequest(t, webhookRouter(&fakeProcessor{}, ""), http.MethodPost, "/webhooks/vapi", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookSecret(t *testing.T) {
	p := &fakeProcessor{}
	router := webhookRouter(p, "shh")

	rec := doRequest(t, router, http.MethodPost, "/webhooks/vapi", endOfCallBody, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/webhooks/vapi", endOfCallBody, map[string]string{"X-Vapi-Secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/webhooks/vapi", endOfCallBody, map[string]string{"X-Vapi-Secret": "shh"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, p.reports, 1)
}

func TestWebhookProcessingFailure(t *testing.T) {
	p := &fakeProcessor{err: errors.New("db down")}

	rec := doRequest(t, webhookRouter(p, ""), http.MethodPost, "/webhooks/vapi", endOfCallBody, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
