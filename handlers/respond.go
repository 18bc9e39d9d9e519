package handlers

import (
	"encoding/json"
	"net/http"

	"healthTrackerAPI/internal/logger"
)

type responder struct {
	log *logger.Logger
}

func (rs responder) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		rs.log.Error("failed to encode response", "status", code, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		rs.log.Debug("failed to write response", "error", err)
	}
}

func (rs responder) respondWithError(w http.ResponseWriter, code int, message string) {
	rs.respondWithJSON(w, code, map[string]string{"error": message})
}
