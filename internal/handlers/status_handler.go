package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/common"
	"github.com/ternarybob/swarmcrew/internal/models"
)

// StatusHandler handles HTTP requests for service health
type StatusHandler struct {
	logger arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{logger: logger}
}

// HealthHandler handles GET /health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, models.HealthResponse{
		Status:  "healthy",
		Version: common.GetVersion(),
	})
}
