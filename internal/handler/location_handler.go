package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/jinzhu/copier"
	"github.com/sylonai/sylon-voice-service/internal/domain"
	"github.com/sylonai/sylon-voice-service/internal/repository"
	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// LocationHandler serves read-only location, call log and usage views
type LocationHandler struct {
	repos repository.RepositoryManager
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(repos repository.RepositoryManager) *LocationHandler {
	return &LocationHandler{repos: repos}
}

// GetLocation godoc
// @Summary Get location connection
// @Description Retrieve a location's provisioning state without credentials
// @Tags locations
// @Produce json
// @Param locationId path string true "CRM location ID"
// @Success 200 {object} domain.LocationView "Location found"
// @Failure 404 {object} map[string]interface{} "Location not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /api/locations/{locationId} [get]
func (h *LocationHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["locationId"]

	conn, err := h.repos.LocationConnection().GetByLocationID(r.Context(), locationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Location not found")
			return
		}
		logger.Error(r.Context(), "Failed to load location", zap.String("location_id", locationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load location")
		return
	}

	var view domain.LocationView
	if err := copier.Copy(&view, conn); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build location view")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListCallLogs godoc
// @Summary List call logs
// @Description List a location's recorded calls, newest first
// @Tags locations
// @Produce json
// @Param locationId path string true "CRM location ID"
// @Param limit query int false "Maximum results (default 50, max 500)"
// @Success 200 {array} domain.CallLog "Call logs"
// @Failure 400 {object} map[string]interface{} "Invalid limit"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /api/locations/{locationId}/call-logs [get]
func (h *LocationHandler) ListCallLogs(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["locationId"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative number")
			return
		}
		limit = parsed
	}

	logs, err := h.repos.CallLog().ListByLocation(r.Context(), locationID, limit)
	if err != nil {
		logger.Error(r.Context(), "Failed to list call logs", zap.String("location_id", locationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list call logs")
		return
	}
	if logs == nil {
		logs = []*domain.CallLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// ListUsage godoc
// @Summary List tenant usage
// @Description List a tenant's monthly usage records, newest period first
// @Tags tenants
// @Produce json
// @Param tenantId path string true "Tenant ID"
// @Success 200 {array} domain.UsageRecord "Usage records"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /api/tenants/{tenantId}/usage [get]
func (h *LocationHandler) ListUsage(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	records, err := h.repos.UsageRecord().ListByTenant(r.Context(), tenantID)
	if err != nil {
		logger.Error(r.Context(), "Failed to list usage", zap.String("tenant_id", tenantID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list usage")
		return
	}
	if records == nil {
		records = []*domain.UsageRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// SetupLocationRoutes registers read routes on an API subrouter
func (h *LocationHandler) SetupLocationRoutes(router *mux.Router) {
	router.HandleFunc("/locations/{locationId}", h.GetLocation).Methods("GET")
	router.HandleFunc("/locations/{locationId}/call-logs", h.ListCallLogs).Methods("GET")
	router.HandleFunc("/tenants/{tenantId}/usage", h.ListUsage).Methods("GET")
}
