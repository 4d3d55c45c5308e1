package api

import "net/http"

func (h *Handler) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, set, err := queryInt(r, "limit")
	if err != nil || (set && limit <= 0) {
		respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	logs, err := h.audits.Latest(r.Context(), limit)
	if err != nil {
		respondStoreError(w, err, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}
