package controllers

import (
	"context"
	"net/http"
	"time"

	"chatdesk/chatdesk/utils/logging"

	"go.uber.org/zap"
)

// Pinger is any backend that can prove it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	backends map[string]Pinger
}

func NewHealthController(backends map[string]Pinger) *HealthController {
	return &HealthController{backends: backends}
}

func (h *HealthController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for name, p := range h.backends {
		if err := p.Ping(ctx); err != nil {
			logging.ErrorLogger.Error("health check failed", zap.String("backend", name), zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unavailable", "backend": "` + name + `"}`))
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
