package command

import (
	"context"
	"time"

	"github.com/agentbridge/agentbridge/internal/apierr"
	"github.com/agentbridge/agentbridge/internal/model"
	"github.com/agentbridge/agentbridge/internal/store"
)

// Dispatcher implements the pull-based long-poll handoff of spec.md §4.2:
// an agent asks for work; if none is queued, the request blocks (bounded
// by the caller-supplied timeout) until Enqueue signals it or the timeout
// elapses.
type Dispatcher struct {
	commands *store.CommandRepo
	waiters  *WaiterRegistry
	signal   Signaler
}

// Signaler notifies other processes that work landed for a deployment.
// The in-process WaiterRegistry always satisfies this locally; natsbridge
// additionally republishes the signal across replicas.
type Signaler interface {
	Signal(deploymentHash string)
}

func NewDispatcher(commands *store.CommandRepo, waiters *WaiterRegistry, signal Signaler) *Dispatcher {
	if signal == nil {
		signal = waiters
	}
	return &Dispatcher{commands: commands, waiters: waiters, signal: signal}
}

// Enqueue creates a new queued command and wakes any long-poll waiting for
// its deployment.
func (d *Dispatcher) Enqueue(c *model.Command) error {
	if err := d.commands.Create(c); err != nil {
		return err
	}
	d.signal.Signal(c.DeploymentHash)
	return nil
}

// WaitForCommand implements GET /api/v1/agent/commands/wait/{deployment_hash}:
// it claims the next queued command for deploymentHash, blocking up to
// timeout if the queue is momentarily empty. Returns apierr.KindNotFound if
// no command arrives before timeout elapses, and
// apierr.KindServiceUnavailable if ctx is done first.
//
// lastCommandID is the id the agent last received, carried on the
// long-poll's ?last_command_id= query parameter (spec.md §4.2). It is
// excluded from the claim so a reconnecting agent that already holds that
// command is never handed it a second time by this call.
func (d *Dispatcher) WaitForCommand(ctx context.Context, deploymentHash string, timeout time.Duration, lastCommandID string) (*model.Command, error) {
	deadline := time.Now().Add(timeout)

	for {
		cmd, err := d.commands.ClaimNext(deploymentHash, time.Now(), lastCommandID)
		if err == nil {
			return cmd, nil
		}
		if e, ok := apierr.As(err); !ok || e.Kind != apierr.KindNotFound {
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, apierr.New(apierr.KindNotFound, "long-poll timed out with no command")
		}

		ch, release := d.waiters.Register(deploymentHash)
		timer := time.NewTimer(remaining)

		select {
		case <-ch:
			timer.Stop()
			release()
			// loop around to claim; another goroutine may win the race,
			// in which case ClaimNext above returns NotFound again and we
			// re-register.
		case <-timer.C:
			release()
			return nil, apierr.New(apierr.KindNotFound, "long-poll timed out with no command")
		case <-ctx.Done():
			timer.Stop()
			release()
			return nil, apierr.Wrap(apierr.KindServiceUnavailable, "client disconnected", ctx.Err())
		}
	}
}
