package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DeploymentRepo tracks the external deployment records the core touches:
// an existing record only ever has last_seen_at updated here, per spec.md
// §3's framing of Deployment as mostly externally owned.
type DeploymentRepo struct {
	db *sql.DB
}

func NewDeploymentRepo(db *sql.DB) *DeploymentRepo { return &DeploymentRepo{db: db} }

// Touch upserts a deployment record and bumps last_seen_at. It is called on
// agent registration, so a deployment hash an agent registers against is
// recorded even if no record existed yet; on conflict only last_seen_at
// changes.
func (r *DeploymentRepo) Touch(deploymentHash, userID string, metadata map[string]string, at time.Time) error {
	meta, _ := json.Marshal(metadata)
	_, err := r.db.Exec(`
		INSERT INTO deployments (deployment_hash, user_id, last_seen_at, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(deployment_hash) DO UPDATE SET
			last_seen_at = excluded.last_seen_at
	`, deploymentHash, userID, at, string(meta), at)
	if err != nil {
		return fmt.Errorf("touch deployment: %w", err)
	}
	return nil
}
