package httpapi

import (
	"time"

	"github.com/agentbridge/agentbridge/internal/apierr"
	"github.com/agentbridge/agentbridge/internal/command"
	"github.com/agentbridge/agentbridge/internal/model"
)

// applyReport validates and applies an agent-submitted status report
// against the command state machine (spec.md §4.3), rejecting reports
// that would violate terminal-state immutability.
func (s *Server) applyReport(req reportRequest) (*model.Command, error) {
	if req.CommandID == "" {
		return nil, apierr.New(apierr.KindInvalidArgument, "command_id is required")
	}

	to := model.CommandStatus(req.Status)
	switch to {
	case model.StatusExecuting, model.StatusCompleted, model.StatusFailed:
	default:
		return nil, apierr.Newf(apierr.KindInvalidArgument, "unsupported report status %q", req.Status)
	}

	current, err := s.Commands.GetByID(req.CommandID)
	if err != nil {
		return nil, err
	}

	if err := command.ValidateTransition(current.Status, to); err != nil {
		return nil, apierr.Wrap(apierr.KindConflict, "illegal status transition", err)
	}

	if to == model.StatusCompleted || to == model.StatusFailed {
		if err := command.ValidateReport(current.Type, req.Result); err != nil {
			return nil, apierr.Wrap(apierr.KindConflict, "report does not match command type's schema", err)
		}
	}

	var cmdErr *model.CommandError
	if req.ErrorCode != "" {
		cmdErr = &model.CommandError{Code: req.ErrorCode, Message: req.ErrorMessage}
	}

	now := time.Now()
	if err := s.Commands.Transition(current.CommandID, current.Status, to, "agent:"+current.DeploymentHash, "agent report", req.Result, cmdErr, now); err != nil {
		return nil, err
	}

	return s.Commands.GetByID(current.CommandID)
}
