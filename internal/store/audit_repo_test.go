package store

import (
	"testing"
	"time"

	"github.com/agentbridge/agentbridge/internal/model"
)

func TestAuditAppendAndQuery(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuditRepo(db)
	now := time.Now().UTC()

	e := &model.AuditLog{
		ID:             "evt-1",
		DeploymentHash: "dep-1",
		Action:         "agent.register",
		Status:         "success",
		Details:        map[string]string{"version": "1.0.0"},
		SourceAddr:     "10.0.0.1",
		Timestamp:      now,
	}
	if err := repo.Append(e); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := repo.Query("dep-1", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].Action != "agent.register" {
		t.Fatalf("unexpected audit entries: %+v", got)
	}
	if got[0].Details["version"] != "1.0.0" {
		t.Errorf("expected details to round-trip, got %v", got[0].Details)
	}
}

func TestAuditQueryFiltersByDeployment(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuditRepo(db)
	now := time.Now().UTC()

	_ = repo.Append(&model.AuditLog{ID: "e1", DeploymentHash: "dep-a", Action: "x", Status: "success", Timestamp: now})
	_ = repo.Append(&model.AuditLog{ID: "e2", DeploymentHash: "dep-b", Action: "y", Status: "success", Timestamp: now})

	got, err := repo.Query("dep-a", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "e1" {
		t.Fatalf("expected only dep-a entries, got %+v", got)
	}
}

func TestAuditQueryWithoutDeploymentReturnsAll(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuditRepo(db)
	now := time.Now().UTC()

	_ = repo.Append(&model.AuditLog{ID: "e1", DeploymentHash: "dep-a", Action: "x", Status: "success", Timestamp: now})
	_ = repo.Append(&model.AuditLog{ID: "e2", DeploymentHash: "dep-b", Action: "y", Status: "success", Timestamp: now})

	got, err := repo.Query("", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both entries without a deployment filter, got %+v", got)
	}
}
