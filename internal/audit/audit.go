// Package audit is the append-only security-event log described in
// SPEC_FULL.md §10, grounded on the teacher's ActivityLog/AddActivity
// feature (persistence/store.go, hub.go's BroadcastActivity) made durable
// via internal/store instead of an in-memory ring buffer.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/agentbridge/agentbridge/internal/model"
	"github.com/agentbridge/agentbridge/internal/store"
)

// Logger appends audit entries and serves queries over them.
type Logger struct {
	repo *store.AuditRepo
}

func NewLogger(repo *store.AuditRepo) *Logger {
	return &Logger{repo: repo}
}

// Record appends a new audit entry with a generated id and timestamp.
func (l *Logger) Record(deploymentHash, action, status, sourceAddr string, details map[string]string) error {
	return l.repo.Append(&model.AuditLog{
		ID:             uuid.NewString(),
		DeploymentHash: deploymentHash,
		Action:         action,
		Status:         status,
		Details:        details,
		SourceAddr:     sourceAddr,
		Timestamp:      time.Now(),
	})
}

// Query returns recent audit entries, optionally scoped to a deployment.
func (l *Logger) Query(deploymentHash string, limit int) ([]*model.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return l.repo.Query(deploymentHash, limit)
}
