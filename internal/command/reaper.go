package command

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/model"
	"github.com/agentbridge/agentbridge/internal/store"
)

// Reaper periodically sweeps commands stuck in sent/executing past their
// timeout and agents past their heartbeat staleness window, grounded on
// the teacher's StartHeartbeatChecker ticker loop (server/heartbeat.go):
// snapshot under lock, act outside it.
type Reaper struct {
	commands       *store.CommandRepo
	agents         *store.AgentRepo
	interval       time.Duration
	staleThreshold time.Duration
	log            *zap.Logger
}

func NewReaper(commands *store.CommandRepo, agents *store.AgentRepo, interval, staleThreshold time.Duration, log *zap.Logger) *Reaper {
	return &Reaper{commands: commands, agents: agents, interval: interval, staleThreshold: staleThreshold, log: log}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("reaper starting", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopping")
			return
		case <-ticker.C:
			r.sweepStaleAgents()
			r.sweepTimedOutCommands()
		}
	}
}

func (r *Reaper) sweepTimedOutCommands() {
	now := time.Now()
	timedOut, err := r.commands.ListTimedOut(now)
	if err != nil {
		r.log.Error("list timed-out commands failed", zap.Error(err))
		return
	}
	for _, c := range timedOut {
		if err := ReapTimedOutCommand(r.commands, c, now); err != nil {
			r.log.Error("reap timed-out command failed", zap.String("command_id", c.CommandID), zap.Error(err))
			continue
		}
		r.log.Info("command failed by reaper due to dispatch timeout",
			zap.String("command_id", c.CommandID),
			zap.String("deployment_hash", c.DeploymentHash))
	}
}

func (r *Reaper) sweepStaleAgents() {
	cutoff := time.Now().Add(-r.staleThreshold)
	stale, err := r.agents.ListStale(cutoff)
	if err != nil {
		r.log.Error("list stale agents failed", zap.Error(err))
		return
	}
	for _, a := range stale {
		if err := r.agents.MarkStatus(a.DeploymentHash, model.AgentOffline); err != nil {
			r.log.Error("mark agent offline failed", zap.String("deployment_hash", a.DeploymentHash), zap.Error(err))
			continue
		}
		r.log.Info("agent marked offline due to missed heartbeat",
			zap.String("deployment_hash", a.DeploymentHash),
			zap.Time("last_heartbeat", a.LastHeartbeat))
	}
}

// ReapTimedOutCommand transitions a single sent/executing command whose
// TimeoutSeconds window has elapsed to failed. The Reaper's sweep calls it
// for each command that CommandRepo.ListTimedOut reports; it is a targeted
// transition of one command rather than a table-wide update.
func ReapTimedOutCommand(repo *store.CommandRepo, c *model.Command, now time.Time) error {
	from := c.Status
	return repo.Transition(c.CommandID, from, model.StatusFailed, "reaper", "dispatch timeout exceeded", nil,
		&model.CommandError{Code: "timeout", Message: "agent did not report before timeout"}, now)
}
