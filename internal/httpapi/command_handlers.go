package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/agentbridge/agentbridge/internal/apierr"
	"github.com/agentbridge/agentbridge/internal/capability"
	"github.com/agentbridge/agentbridge/internal/command"
	"github.com/agentbridge/agentbridge/internal/model"
	"github.com/google/uuid"
)

type createCommandRequest struct {
	DeploymentHash string         `json:"deployment_hash"`
	Type           string         `json:"type"`
	Priority       string         `json:"priority"`
	Parameters     map[string]any `json:"parameters"`
	TimeoutSeconds int            `json:"timeout_seconds"`
	ScheduledFor   *time.Time     `json:"scheduled_for,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleCreateCommand(w http.ResponseWriter, r *http.Request) {
	var req createCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, s.Log, apierr.Wrap(apierr.KindInvalidArgument, "malformed command body", err))
		return
	}

	if req.DeploymentHash == "" {
		writeError(w, s.Log, apierr.New(apierr.KindInvalidArgument, "deployment_hash is required"))
		return
	}

	cmdType := model.CommandType(req.Type)
	if err := command.ValidatePayload(cmdType, req.Parameters); err != nil {
		writeError(w, s.Log, err)
		return
	}

	ag, err := s.Agents.Lookup(req.DeploymentHash)
	if err != nil {
		writeError(w, s.Log, err)
		return
	}
	schema := capability.Catalog[cmdType]
	if !ag.HasCapability(schema.RequiredCapability) {
		writeError(w, s.Log, apierr.Newf(apierr.KindPermissionDenied, "agent does not advertise capability %q", schema.RequiredCapability))
		return
	}

	priority := model.Priority(req.Priority)
	if priority == "" {
		priority = model.PriorityNormal
	}
	if !priority.Valid() {
		writeError(w, s.Log, apierr.Newf(apierr.KindInvalidArgument, "invalid priority %q", req.Priority))
		return
	}

	// spec.md §3: commands default to a 300s dispatch timeout, clamped to a
	// 3600s ceiling regardless of what the caller requests.
	timeout := req.TimeoutSeconds
	if timeout <= 0 {
		timeout = 300
	}
	if timeout > 3600 {
		timeout = 3600
	}

	identity, _ := IdentityFromContext(r.Context())
	createdBy := "anonymous"
	if identity != nil {
		createdBy = identity.Subject
	}

	now := time.Now()
	cmd := &model.Command{
		CommandID:      uuid.NewString(),
		DeploymentHash: req.DeploymentHash,
		Type:           cmdType,
		Status:         model.StatusQueued,
		Priority:       priority,
		Parameters:     req.Parameters,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		ScheduledFor:   req.ScheduledFor,
		UpdatedAt:      now,
		TimeoutSeconds: timeout,
		Metadata:       req.Metadata,
	}

	if err := s.Dispatcher.Enqueue(cmd); err != nil {
		writeError(w, s.Log, err)
		return
	}

	s.Metrics.CommandsByStatus.WithLabelValues(string(model.StatusQueued)).Inc()
	_ = s.AuditLog.Record(req.DeploymentHash, "command.create", "success", r.RemoteAddr,
		map[string]string{"command_id": cmd.CommandID, "type": req.Type})

	writeJSON(w, http.StatusCreated, cmd)
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	deploymentHash := mux.Vars(r)["deployment_hash"]
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	cmds, err := s.Commands.ListByDeployment(deploymentHash, limit)
	if err != nil {
		writeError(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cmds)
}

func (s *Server) handleGetCommand(w http.ResponseWriter, r *http.Request) {
	commandID := mux.Vars(r)["command_id"]
	cmd, err := s.Commands.GetByID(commandID)
	if err != nil {
		writeError(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

func (s *Server) handleCancelCommand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	commandID := vars["command_id"]

	cmd, err := s.Commands.GetByID(commandID)
	if err != nil {
		writeError(w, s.Log, err)
		return
	}

	switch cmd.Status {
	case model.StatusQueued:
		if err := s.Commands.Transition(commandID, model.StatusQueued, model.StatusCancelled, "api", "cancelled before dispatch", nil, nil, time.Now()); err != nil {
			writeError(w, s.Log, err)
			return
		}
	case model.StatusSent, model.StatusExecuting:
		// Piggyback per SPEC_FULL.md §5-9: flag for cooperative cancel on
		// the agent's next payload rather than forcing a terminal state we
		// cannot guarantee the agent honored.
		if err := s.Commands.RequestCancel(commandID); err != nil {
			writeError(w, s.Log, err)
			return
		}
	default:
		writeError(w, s.Log, apierr.New(apierr.KindConflict, "command is already in a terminal state"))
		return
	}

	cmd, err = s.Commands.GetByID(commandID)
	if err != nil {
		writeError(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

func (s *Server) handleCommandHistory(w http.ResponseWriter, r *http.Request) {
	commandID := mux.Vars(r)["command_id"]
	history, err := s.Commands.History(commandID)
	if err != nil {
		writeError(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	deploymentHash := mux.Vars(r)["deployment_hash"]
	ag, err := s.Agents.Lookup(deploymentHash)
	if err != nil {
		writeError(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, capability.ForAgent(ag.Capabilities))
}
