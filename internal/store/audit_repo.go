package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/agentbridge/agentbridge/internal/model"
)

// AuditRepo is the append-only audit trail, grounded on the teacher's
// ActivityLog ring buffer made durable per SPEC_FULL.md §10.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

func (r *AuditRepo) Append(e *model.AuditLog) error {
	details, _ := json.Marshal(e.Details)
	_, err := r.db.Exec(`
		INSERT INTO audit_log (id, deployment_hash, action, status, details, source_addr, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.DeploymentHash, e.Action, e.Status, string(details), e.SourceAddr, e.Timestamp)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Query returns up to limit audit entries, optionally filtered by
// deployment hash, newest first.
func (r *AuditRepo) Query(deploymentHash string, limit int) ([]*model.AuditLog, error) {
	var rows *sql.Rows
	var err error
	if deploymentHash != "" {
		rows, err = r.db.Query(`
			SELECT id, deployment_hash, action, status, details, source_addr, timestamp
			FROM audit_log WHERE deployment_hash = ? ORDER BY timestamp DESC LIMIT ?
		`, deploymentHash, limit)
	} else {
		rows, err = r.db.Query(`
			SELECT id, deployment_hash, action, status, details, source_addr, timestamp
			FROM audit_log ORDER BY timestamp DESC LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []*model.AuditLog
	for rows.Next() {
		var e model.AuditLog
		var depHash, sourceAddr, details sql.NullString
		if err := rows.Scan(&e.ID, &depHash, &e.Action, &e.Status, &details, &sourceAddr, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.DeploymentHash = depHash.String
		e.SourceAddr = sourceAddr.String
		if details.Valid && details.String != "" {
			_ = json.Unmarshal([]byte(details.String), &e.Details)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
