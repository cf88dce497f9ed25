package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/agentbridge/agentbridge/internal/apierr"
)

type registerRequest struct {
	DeploymentHash string            `json:"deployment_hash"`
	UserID         string            `json:"user_id"`
	Version        string            `json:"version"`
	Capabilities   []string          `json:"capabilities"`
	SystemInfo     map[string]string `json:"system_info,omitempty"`
}

type registerResponse struct {
	AgentID  string `json:"agent_id"`
	HMACKey  string `json:"hmac_key"`
	IssuedAt string `json:"issued_at"`
}

func (s *Server) handleAgentRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.Log, apierr.Wrap(apierr.KindInvalidArgument, "malformed registration body", err))
		return
	}
	if req.DeploymentHash == "" {
		writeError(w, s.Log, apierr.New(apierr.KindInvalidArgument, "deployment_hash is required"))
		return
	}

	a, key, err := s.Agents.Register(r.Context(), req.DeploymentHash, req.UserID, req.Version, req.Capabilities, req.SystemInfo)
	if err != nil {
		writeError(w, s.Log, err)
		return
	}

	_ = s.AuditLog.Record(req.DeploymentHash, "agent.register", "success", r.RemoteAddr, map[string]string{"version": req.Version})

	writeJSON(w, http.StatusCreated, registerResponse{
		AgentID:  a.ID,
		HMACKey:  key,
		IssuedAt: a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (s *Server) handleAgentWait(w http.ResponseWriter, r *http.Request) {
	deploymentHash := mux.Vars(r)["deployment_hash"]

	timeout := parseLongPollTimeout(r, s.LongPollMin, s.LongPollMax)
	lastCommandID := r.URL.Query().Get("last_command_id")

	if err := s.Agents.Heartbeat(deploymentHash); err != nil {
		writeError(w, s.Log, err)
		return
	}

	ctx, cancel := contextWithDeadline(r, timeout)
	defer cancel()

	cmd, err := s.Dispatcher.WaitForCommand(ctx, deploymentHash, timeout, lastCommandID)
	if err != nil {
		if e, ok := apierr.As(err); ok && e.Kind == apierr.KindNotFound {
			writeJSON(w, http.StatusNoContent, nil)
			return
		}
		writeError(w, s.Log, err)
		return
	}

	s.Hub.BroadcastCommandEvent("dispatched", cmd)
	writeJSON(w, http.StatusOK, cmd)
}

type reportRequest struct {
	CommandID      string         `json:"command_id"`
	DeploymentHash string         `json:"deployment_hash"`
	Status         string         `json:"status"`
	Result         map[string]any `json:"result,omitempty"`
	ErrorCode      string         `json:"error_code,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
}

func (s *Server) handleAgentReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.Log, apierr.Wrap(apierr.KindInvalidArgument, "malformed report body", err))
		return
	}

	cmd, err := s.applyReport(req)
	if err != nil {
		writeError(w, s.Log, err)
		return
	}

	s.Hub.BroadcastCommandEvent("reported", cmd)
	writeJSON(w, http.StatusOK, cmd)
}
