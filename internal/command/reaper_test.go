package command

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/model"
	"github.com/agentbridge/agentbridge/internal/store"
)

func newReaperTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSweepStaleAgentsMarksOffline(t *testing.T) {
	db := newReaperTestDB(t)
	agents := store.NewAgentRepo(db)
	commands := store.NewCommandRepo(db)
	now := time.Now().UTC()

	if err := agents.Upsert(&model.Agent{
		ID: "a1", DeploymentHash: "dep-1", Status: model.AgentOnline,
		LastHeartbeat: now.Add(-time.Hour), CreatedAt: now,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	r := NewReaper(commands, agents, time.Minute, 10*time.Minute, zap.NewNop())
	r.sweepStaleAgents()

	got, err := agents.GetByDeployment("dep-1")
	if err != nil {
		t.Fatalf("get by deployment: %v", err)
	}
	if got.Status != model.AgentOffline {
		t.Errorf("expected agent to be marked offline, got %s", got.Status)
	}
}

func TestSweepTimedOutCommandsTransitionsExpiredToFailed(t *testing.T) {
	db := newReaperTestDB(t)
	agents := store.NewAgentRepo(db)
	commands := store.NewCommandRepo(db)
	now := time.Now().UTC()

	c := &model.Command{
		CommandID: "c-1", DeploymentHash: "dep-1", Type: model.CommandHealth,
		Status: model.StatusQueued, Priority: model.PriorityNormal,
		CreatedBy: "user:tester", CreatedAt: now, UpdatedAt: now, TimeoutSeconds: -5,
	}
	if err := commands.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := commands.ClaimNext("dep-1", now, ""); err != nil {
		t.Fatalf("claim: %v", err)
	}

	r := NewReaper(commands, agents, time.Minute, 10*time.Minute, zap.NewNop())
	r.sweepTimedOutCommands()

	got, err := commands.GetByID("c-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusFailed {
		t.Errorf("expected command to be failed by the reaper sweep, got %s", got.Status)
	}
}

func TestReapTimedOutCommandTransitionsToFailed(t *testing.T) {
	db := newReaperTestDB(t)
	commands := store.NewCommandRepo(db)
	now := time.Now().UTC()

	c := &model.Command{
		CommandID: "c-1", DeploymentHash: "dep-1", Type: model.CommandHealth,
		Status: model.StatusQueued, Priority: model.PriorityNormal,
		CreatedBy: "user:tester", CreatedAt: now, UpdatedAt: now, TimeoutSeconds: 60,
	}
	if err := commands.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	claimed, err := commands.ClaimNext("dep-1", now, "")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := ReapTimedOutCommand(commands, claimed, now.Add(time.Minute)); err != nil {
		t.Fatalf("reap: %v", err)
	}

	got, err := commands.GetByID("c-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusFailed {
		t.Errorf("expected failed status, got %s", got.Status)
	}
	if got.Error == nil || got.Error.Code != "timeout" {
		t.Errorf("expected timeout error recorded, got %+v", got.Error)
	}
}
