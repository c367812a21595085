package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sylonai/sylon-voice-service/internal/services/provisioning"
	"github.com/sylonai/sylon-voice-service/pkg/twilio"
)

func provisioningRouter(p *fakeProvisioner) *mux.Router {
	router := mux.NewRouter()
	NewProvisioningHandler(p).SetupProvisioningRoutes(router)
	return router
}

func TestActivateSuccess(t *testing.T) {
	p := &fakeProvisioner{activateResult: &provisioning.ActivationResult{
		RunID:       "run-1",
		Success:     true,
		PhoneNumber: "+14155550100",
		Steps: []provisioning.Step{
			{Kind: provisioning.StepBuyNumber, Status: provisioning.StepSuccess},
		},
	}}

	rec := doRequest(t, provisioningRouter(p), http.MethodPost, "/activate",
		`{"tenantId":"t1","locationId":"loc1","locationName":"Main St","areaCode":"415"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "+14155550100", body["phoneNumber"])
	assert.Equal(t, "loc1", p.lastActivate.LocationID)
	assert.Equal(t, "415", p.lastActivate.AreaCode)
}

func TestActivateSoftFailureIsOK(t *testing.T) {
	p := &fakeProvisioner{activateResult: &provisioning.ActivationResult{
		Success: false,
		Error:   "number could not be imported",
		Steps: []provisioning.Step{
			{Kind: provisioning.StepImportNumber, Status: provisioning.StepFailed},
		},
	}}

	rec := doRequest(t, provisioningRouter(p), http.MethodPost, "/activate", `{"tenantId":"t1","locationId":"loc1","locationName":"Main"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

func TestActivateHardStopReturnsStepLog(t *testing.T) {
	p := &fakeProvisioner{
		activateResult: &provisioning.ActivationResult{
			Success: false,
			Error:   "buy_number failed",
			Steps: []provisioning.Step{
				{Kind: provisioning.StepBuyNumber, Status: provisioning.StepFailed, Error: "number already owned"},
			},
		},
		activateErr: &provisioning.HardStopError{Step: provisioning.StepBuyNumber, Err: errors.New("number already owned")},
	}

	rec := doRequest(t, provisioningRouter(p), http.MethodPost, "/activate",
		`{"tenantId":"t1","locationId":"loc1","locationName":"Main","phoneNumber":"+14155551213"}`, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	steps, ok := body["steps"].([]interface{})
	require.True(t, ok)
	require.Len(t, steps, 1)
	step := steps[0].(map[string]interface{})
	assert.Equal(t, "buy_number", step["step"])
	assert.Equal(t, "failed", step["status"])
}

func TestActivateErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &provisioning.ValidationError{Field: "locationId", Message: "is required"}, http.StatusBadRequest},
		{"busy", provisioning.ErrLocationBusy, http.StatusConflict},
		{"wrapped busy", fmt.Errorf("lock: %w", provisioning.ErrLocationBusy), http.StatusConflict},
		{"internal", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvisioner{activateErr: tt.err}
			rec := doRequest(t, provisioningRouter(p), http.MethodPost, "/activate", `{"locationId":"loc1"}`, nil)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestActivateInvalidBody(t *testing.T) {
	rec := doRequest(t, provisioningRouter(&fakeProvisioner{}), http.MethodPost, "/activate", `{"tenantId":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeactivate(t *testing.T) {
	p := &fakeProvisioner{deactivateResult: &provisioning.DeactivationResult{
		Success: true,
		Message: "Location deactivated. Phone number released.",
		Steps: []provisioning.Step{
			{Kind: provisioning.StepClearDatabase, Status: provisioning.StepSuccess},
		},
	}}

	rec := doRequest(t, provisioningRouter(p), http.MethodPost, "/deactivate", `{"locationId":"loc1"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Location deactivated. Phone number released.", body["message"])
}

func TestDeactivateNotFound(t *testing.T) {
	p := &fakeProvisioner{deactivateErr: &provisioning.NotFoundError{LocationID: "loc1"}}

	rec := doRequest(t, provisioningRouter(p), http.MethodPost, "/deactivate", `{"locationId":"loc1"}`, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeactivateClearFailureReturnsResult(t *testing.T) {
	p := &fakeProvisioner{
		deactivateResult: &provisioning.DeactivationResult{
			Success: false,
			Error:   "location state could not be cleared",
			Steps: []provisioning.Step{
				{Kind: provisioning.StepClearDatabase, Status: provisioning.StepFailed},
			},
		},
		deactivateErr: errors.New("failed to clear location state"),
	}

	rec := doRequest(t, provisioningRouter(p), http.MethodPost, "/deactivate", `{"locationId":"loc1"}`, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "location state could not be cleared", body["error"])
	assert.Len(t, body["steps"], 1)
}

func TestSearchNumbers(t *testing.T) {
	p := &fakeProvisioner{numbers: []twilio.AvailableNumber{
		{PhoneNumber: "+14155550100", FriendlyName: "(415) 555-0100", Locality: "San Francisco", Region: "CA"},
	}}

	rec := doRequest(t, provisioningRouter(p), http.MethodGet, "/phone-numbers/search?areaCode=415&limit=3", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "415", p.lastAreaCode)
	assert.Equal(t, 3, p.lastLimit)
	numbers := decodeBody(t, rec)["numbers"].([]interface{})
	require.Len(t, numbers, 1)
	assert.Equal(t, "+14155550100", numbers[0].(map[string]interface{})["phoneNumber"])
}

func TestSearchNumbersEmptyList(t *testing.T) {
	rec := doRequest(t, provisioningRouter(&fakeProvisioner{}), http.MethodGet, "/phone-numbers/search", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decodeBody(t, rec)["numbers"])
}

func TestSearchNumbersErrors(t *testing.T) {
	p := &fakeProvisioner{searchErr: &provisioning.ValidationError{Field: "areaCode", Message: "must be a 3-digit area code"}}
	rec := doRequest(t, provisioningRouter(p), http.MethodGet, "/phone-numbers/search?areaCode=12", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, provisioningRouter(&fakeProvisioner{}), http.MethodGet, "/phone-numbers/search?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	p = &fakeProvisioner{searchErr: errors.New("twilio down")}
	rec = doRequest(t, provisioningRouter(p), http.MethodGet, "/phone-numbers/search", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
