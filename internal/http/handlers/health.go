package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const readyTimeout = 2 * time.Second

func (api *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Review Radar API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready reports whether the job store answers.
func (api *API) Ready(w http.ResponseWriter, r *http.Request) {
	if api.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := api.health.Ping(ctx); err != nil {
			api.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, r, http.StatusServiceUnavailable, "Store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ready"})
}
