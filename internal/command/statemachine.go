package command

import (
	"fmt"

	"github.com/agentbridge/agentbridge/internal/model"
)

// validTransitions enumerates the allowed CommandStatus transitions,
// grounded on the teacher's tasks.validTransitions map and
// TransitionTo/IsTerminal methods (internal/tasks/types.go).
var validTransitions = map[model.CommandStatus][]model.CommandStatus{
	model.StatusQueued:    {model.StatusSent, model.StatusCancelled},
	model.StatusSent:      {model.StatusExecuting, model.StatusCompleted, model.StatusFailed, model.StatusCancelled},
	model.StatusExecuting: {model.StatusCompleted, model.StatusFailed, model.StatusCancelled},
}

// CanTransition reports whether moving from -> to is a legal state-machine
// edge. Terminal states (completed, failed, cancelled) admit no transitions.
func CanTransition(from, to model.CommandStatus) bool {
	if from.IsTerminal() {
		return false
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a descriptive error if from -> to is illegal.
func ValidateTransition(from, to model.CommandStatus) error {
	if from.IsTerminal() {
		return fmt.Errorf("command already in terminal state %s", from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}
