package api

import (
	"net/http"
	"strconv"
)

const defaultSDOpenLimit = 200

func (h *handlers) handleSDOpen(w http.ResponseWriter, r *http.Request) {
	limit := defaultSDOpenLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	result := h.sdProxy.GetOpen(r.Context(), limit)
	writeJSON(w, http.StatusOK, result)
}
