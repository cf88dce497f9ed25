package httpapi

import (
	"net/http"
	"strconv"
)

func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	deploymentHash := r.URL.Query().Get("deployment_hash")
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	entries, err := s.AuditLog.Query(deploymentHash, limit)
	if err != nil {
		writeError(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePolicyReload(w http.ResponseWriter, r *http.Request) {
	if err := s.PolicyLoad(); err != nil {
		writeError(w, s.Log, err)
		return
	}
	_ = s.AuditLog.Record("", "policy.reload", "success", r.RemoteAddr, nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}
