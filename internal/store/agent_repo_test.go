package store

import (
	"testing"
	"time"

	"github.com/agentbridge/agentbridge/internal/apierr"
	"github.com/agentbridge/agentbridge/internal/model"
)

func TestAgentUpsertAndGetByDeployment(t *testing.T) {
	db := newTestDB(t)
	repo := NewAgentRepo(db)
	now := time.Now().UTC()

	a := &model.Agent{
		ID:             "agent-1",
		DeploymentHash: "dep-1",
		Capabilities:   []string{"health_check", "log_retrieval"},
		Version:        "1.0.0",
		SystemInfo:     map[string]string{"os": "linux"},
		LastHeartbeat:  now,
		Status:         model.AgentOnline,
		CreatedAt:      now,
	}
	if err := repo.Upsert(a); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.GetByDeployment("dep-1")
	if err != nil {
		t.Fatalf("get by deployment: %v", err)
	}
	if got.ID != "agent-1" || !got.HasCapability("health_check") {
		t.Errorf("unexpected agent round-trip: %+v", got)
	}
	if got.SystemInfo["os"] != "linux" {
		t.Errorf("expected system_info to round-trip, got %v", got.SystemInfo)
	}
}

func TestAgentUpsertReplacesOnReregistration(t *testing.T) {
	db := newTestDB(t)
	repo := NewAgentRepo(db)
	now := time.Now().UTC()

	first := &model.Agent{ID: "agent-1", DeploymentHash: "dep-1", Version: "1.0.0", CreatedAt: now, LastHeartbeat: now, Status: model.AgentOnline}
	if err := repo.Upsert(first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := &model.Agent{ID: "agent-2", DeploymentHash: "dep-1", Version: "2.0.0", CreatedAt: now, LastHeartbeat: now, Status: model.AgentOnline}
	if err := repo.Upsert(second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetByDeployment("dep-1")
	if err != nil {
		t.Fatalf("get by deployment: %v", err)
	}
	if got.ID != "agent-2" || got.Version != "2.0.0" {
		t.Errorf("expected re-registration to replace agent identity, got %+v", got)
	}
}

func TestAgentGetByDeploymentNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewAgentRepo(db)

	_, err := repo.GetByDeployment("missing")
	e, ok := apierr.As(err)
	if !ok || e.Kind != apierr.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestAgentListStaleExcludesRecentAndAlreadyOffline(t *testing.T) {
	db := newTestDB(t)
	repo := NewAgentRepo(db)
	now := time.Now().UTC()

	stale := &model.Agent{ID: "a1", DeploymentHash: "dep-stale", LastHeartbeat: now.Add(-time.Hour), Status: model.AgentOnline, CreatedAt: now}
	fresh := &model.Agent{ID: "a2", DeploymentHash: "dep-fresh", LastHeartbeat: now, Status: model.AgentOnline, CreatedAt: now}
	alreadyOffline := &model.Agent{ID: "a3", DeploymentHash: "dep-offline", LastHeartbeat: now.Add(-time.Hour), Status: model.AgentOffline, CreatedAt: now}
	for _, a := range []*model.Agent{stale, fresh, alreadyOffline} {
		if err := repo.Upsert(a); err != nil {
			t.Fatalf("upsert %s: %v", a.DeploymentHash, err)
		}
	}

	got, err := repo.ListStale(now.Add(-10 * time.Minute))
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(got) != 1 || got[0].DeploymentHash != "dep-stale" {
		t.Fatalf("expected only dep-stale to be reported, got %+v", got)
	}
}

func TestAgentHeartbeatNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewAgentRepo(db)

	err := repo.Heartbeat("missing", time.Now())
	e, ok := apierr.As(err)
	if !ok || e.Kind != apierr.KindNotFound {
		t.Fatalf("expected KindNotFound heartbeating an unregistered agent, got %v", err)
	}
}
