package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/game-gateway/internal/service"
)

// HealthChecker reports the recommendation backend's status.
type HealthChecker interface {
	BackendHealth(ctx context.Context) service.BackendStatus
}

type SystemHandler struct {
	health HealthChecker
	logger *slog.Logger
}

func NewSystemHandler(health HealthChecker, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{health: health, logger: logger}
}

// HandleBackendHealth always answers 200. "success" mirrors whether the
// backend responded, so a dashboard can poll it without error handling.
//
// HTTP: GET /api/system/health
func (h *SystemHandler) HandleBackendHealth(w http.ResponseWriter, r *http.Request) {
	status := h.health.BackendHealth(r.Context())
	writeJSON(w, h.logger, http.StatusOK, successEnvelope{Success: status.Online, Data: status})
}

// HandleLiveness reports that the gateway process is serving.
//
// HTTP: GET /healthz
func (h *SystemHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}
