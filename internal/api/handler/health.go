// Package handler provides HTTP handlers for the watchdog API.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ragpilot/ragpilot/internal/api/response"
	"github.com/ragpilot/ragpilot/internal/watchdog"
)

// HealthService is the watchdog surface the handlers consume.
type HealthService interface {
	CheckAllSystems(ctx context.Context) map[string]watchdog.ServiceHealth
	SystemStatus() watchdog.SystemStatus
	ServiceHistory(service string, window time.Duration) []watchdog.ServiceHealth
	RecentCycles(window time.Duration) []watchdog.CycleMetrics
}

// HealthHandler exposes the watchdog's read surface.
type HealthHandler struct {
	service HealthService
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(service HealthService) *HealthHandler {
	return &HealthHandler{service: service}
}

// SystemStatus handles GET /v1/health/status - aggregate status from
// retained history. Never triggers probes.
func (h *HealthHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.service.SystemStatus())
}

// historyResponse is the wire shape of a history query.
type historyResponse struct {
	Service string                   `json:"service"`
	Hours   float64                  `json:"hours"`
	Entries []watchdog.ServiceHealth `json:"entries"`
}

// ServiceHistory handles GET /v1/health/services/{service}/history.
// An unknown service yields an empty entry list, not an error.
func (h *HealthHandler) ServiceHistory(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")

	hours := 24.0
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			response.BadRequest(w, r, "hours must be a positive number")
			return
		}
		hours = parsed
	}

	window := time.Duration(hours * float64(time.Hour))
	entries := h.service.ServiceHistory(service, window)

	response.JSON(w, r, http.StatusOK, historyResponse{
		Service: service,
		Hours:   hours,
		Entries: entries,
	})
}

// RunChecks handles POST /v1/health/check - runs one probing round on demand
// and returns the fresh snapshots.
func (h *HealthHandler) RunChecks(w http.ResponseWriter, r *http.Request) {
	results := h.service.CheckAllSystems(r.Context())
	response.JSON(w, r, http.StatusOK, results)
}

// CycleMetrics handles GET /v1/health/cycles - loop-level metrics for the
// trailing 24 hours.
func (h *HealthHandler) CycleMetrics(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.service.RecentCycles(24*time.Hour))
}
