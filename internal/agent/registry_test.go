package agent

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentbridge/agentbridge/internal/secretstore"
	"github.com/agentbridge/agentbridge/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
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

	return NewRegistry(store.NewAgentRepo(db), store.NewDeploymentRepo(db), secretstore.NewMemory(), "agentbridge/agents")
}

func TestRegisterIssuesKeyAndPersistsAgent(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	a, key, err := reg.Register(ctx, "dep-1", "user:alice", "1.0.0", []string{"health_check"}, map[string]string{"os": "linux"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if key == "" {
		t.Fatal("expected a non-empty issued key")
	}
	if a.DeploymentHash != "dep-1" || a.Status != "online" {
		t.Fatalf("unexpected agent: %+v", a)
	}

	got, err := reg.Lookup("dep-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != a.ID {
		t.Errorf("expected lookup to return the registered agent, got %+v", got)
	}
}

func TestRotateKeyIssuesFreshKey(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	_, firstKey, err := reg.Register(ctx, "dep-1", "user:alice", "1.0.0", nil, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	secondKey, err := reg.RotateKey(ctx, "dep-1")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if secondKey == firstKey {
		t.Error("expected rotation to produce a different key")
	}
}

func TestHeartbeatUnregisteredAgentFails(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.Heartbeat("never-registered"); err == nil {
		t.Error("expected heartbeat on an unregistered deployment to fail")
	}
}
