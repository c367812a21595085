package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sylonai/sylon-voice-service/internal/services/provisioning"
	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"github.com/sylonai/sylon-voice-service/pkg/twilio"
	"go.uber.org/zap"
)

// Provisioner runs location activation and deactivation.
type Provisioner interface {
	Activate(ctx context.Context, req provisioning.ActivationRequest) (*provisioning.ActivationResult, error)
	Deactivate(ctx context.Context, req provisioning.DeactivationRequest) (*provisioning.DeactivationResult, error)
	SearchNumbers(ctx context.Context, areaCode string, limit int) ([]twilio.AvailableNumber, error)
}

// ProvisioningHandler handles activation, deactivation and number search requests
type ProvisioningHandler struct {
	service Provisioner
}

// NewProvisioningHandler creates a new provisioning handler
func NewProvisioningHandler(service Provisioner) *ProvisioningHandler {
	return &ProvisioningHandler{service: service}
}

// Activate godoc
// @Summary Activate a location
// @Description Buy a number, import it into the voice-AI provider, create an assistant, link them and persist the result
// @Tags provisioning
// @Accept json
// @Produce json
// @Param request body provisioning.ActivationRequest true "Activation request"
// @Success 200 {object} provisioning.ActivationResult "Run finished; success reports whether the location is active"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 409 {object} map[string]interface{} "Another run holds the location"
// @Failure 500 {object} provisioning.ActivationResult "A hard-stop step failed"
// @Router /api/activate [post]
func (h *ProvisioningHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req provisioning.ActivationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Activate(r.Context(), req)
	if err != nil {
		h.writeRunError(w, r, "activation", result, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Deactivate godoc
// @Summary Deactivate a location
// @Description Delete the assistant and imported number, release the telephony number and clear the stored state
// @Tags provisioning
// @Accept json
// @Produce json
// @Param request body provisioning.DeactivationRequest true "Deactivation request"
// @Success 200 {object} provisioning.DeactivationResult "Location deactivated"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 404 {object} map[string]interface{} "Location not found"
// @Failure 409 {object} map[string]interface{} "Another run holds the location"
// @Failure 500 {object} provisioning.DeactivationResult "Stored state could not be cleared"
// @Router /api/deactivate [post]
func (h *ProvisioningHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	var req provisioning.DeactivationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Deactivate(r.Context(), req)
	if err != nil {
		h.writeRunError(w, r, "deactivation", result, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SearchNumbers godoc
// @Summary Search purchasable numbers
// @Description List up to 10 voice-enabled local numbers in an area code
// @Tags provisioning
// @Produce json
// @Param areaCode query string false "3-digit area code (defaults to the configured area code)"
// @Param limit query int false "Maximum results (1-10)"
// @Success 200 {object} map[string]interface{} "Available numbers"
// @Failure 400 {object} map[string]interface{} "Invalid area code"
// @Failure 500 {object} map[string]interface{} "Telephony provider error"
// @Router /api/phone-numbers/search [get]
func (h *ProvisioningHandler) SearchNumbers(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		limit = parsed
	}

	numbers, err := h.service.SearchNumbers(r.Context(), r.URL.Query().Get("areaCode"), limit)
	if err != nil {
		if provisioning.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error(r.Context(), "Number search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to search numbers")
		return
	}
	if numbers == nil {
		numbers = []twilio.AvailableNumber{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"numbers": numbers,
	})
}

// writeRunError maps orchestrator errors to status codes. When the run produced a partial
// result it is returned as the body so the caller sees the step log.
func (h *ProvisioningHandler) writeRunError(w http.ResponseWriter, r *http.Request, operation string, result interface{}, err error) {
	var status int
	switch {
	case provisioning.IsValidation(err):
		status = http.StatusBadRequest
	case provisioning.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, provisioning.ErrLocationBusy):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		logger.Error(r.Context(), "Provisioning run failed", zap.String("operation", operation), zap.Error(err))
	}

	if !isNilResult(result) {
		writeJSON(w, status, result)
		return
	}
	writeError(w, status, err.Error())
}

func isNilResult(result interface{}) bool {
	switch v := result.(type) {
	case nil:
		return true
	case *provisioning.ActivationResult:
		return v == nil
	case *provisioning.DeactivationResult:
		return v == nil
	default:
		return false
	}
}

// SetupProvisioningRoutes registers provisioning routes on an API subrouter
func (h *ProvisioningHandler) SetupProvisioningRoutes(router *mux.Router) {
	router.HandleFunc("/activate", h.Activate).Methods("POST")
	router.HandleFunc("/deactivate", h.Deactivate).Methods("POST")
	router.HandleFunc("/phone-numbers/search", h.SearchNumbers).Methods("GET")
}
