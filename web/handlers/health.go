package handlers

import "net/http"

// Health handles GET /health. The mode field reports "real" when a
// non-local backend can still answer, "mock" when every response comes
// from the emulation store.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	mode := h.gateway.Mode(r.Context())
	available := mode == "real"

	resp := HealthResponse{
		Status:         "healthy",
		KinicAvailable: available,
		Version:        Version,
		Mode:           mode,
	}
	if available {
		resp.CanisterID = h.config.ICP.CanisterID
	}

	respondJSON(w, http.StatusOK, resp)
}
