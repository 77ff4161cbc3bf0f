package handlers

import (
	"net/http"
	"time"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	Started time.Time
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	payload := map[string]string{"status": "ok"}
	if !h.Started.IsZero() {
		payload["uptime"] = time.Since(h.Started).Truncate(time.Second).String()
	}
	respondJSON(r.Context(), w, http.StatusOK, payload)
}
