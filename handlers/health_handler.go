package handlers

import (
	"context"
	"net/http"
	"time"

	"healthTrackerAPI/internal/logger"
	"healthTrackerAPI/internal/store"
)

type HealthHandler struct {
	responder
	store   store.Store
	service string
}

func NewHealthHandler(st store.Store, service string, log *logger.Logger) *HealthHandler {
	return &HealthHandler{responder: responder{log: log}, store: st, service: service}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("health check failed", "error", err)
		h.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.service,
	})
}
