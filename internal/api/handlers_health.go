package api

import "net/http"

// handleHealth is the liveness probe: it never touches a dependency, so a
// hung database or SD outage never takes the process out of rotation.
func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady is the readiness probe: required environment variables and,
// where configured, dependency pings.
func (h *handlers) handleReady(w http.ResponseWriter, r *http.Request) {
	ok, reason := h.health.Ready(r.Context())
	if !ok {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready: " + reason))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
