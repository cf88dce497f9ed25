package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentbridge/agentbridge/internal/apierr"
	"github.com/agentbridge/agentbridge/internal/model"
)

// AgentRepo persists agents, grounded on the teacher's tasks.Store upsert
// pattern (ON CONFLICT DO UPDATE) and scanTask's sql.Null* handling.
type AgentRepo struct {
	db *sql.DB
}

func NewAgentRepo(db *sql.DB) *AgentRepo { return &AgentRepo{db: db} }

// Upsert registers or re-registers an agent for a deployment.
func (r *AgentRepo) Upsert(a *model.Agent) error {
	caps := strings.Join(a.Capabilities, ",")
	sysInfo, _ := json.Marshal(a.SystemInfo)

	_, err := r.db.Exec(`
		INSERT INTO agents (id, deployment_hash, capabilities, version, system_info, last_heartbeat, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(deployment_hash) DO UPDATE SET
			id=excluded.id,
			capabilities=excluded.capabilities,
			version=excluded.version,
			system_info=excluded.system_info,
			last_heartbeat=excluded.last_heartbeat,
			status=excluded.status
	`, a.ID, a.DeploymentHash, caps, a.Version, string(sysInfo), a.LastHeartbeat, a.Status, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert agent: %w", err)
	}
	return nil
}

// Heartbeat bumps last_heartbeat and marks the agent online.
func (r *AgentRepo) Heartbeat(deploymentHash string, at time.Time) error {
	res, err := r.db.Exec(`
		UPDATE agents SET last_heartbeat = ?, status = ? WHERE deployment_hash = ?
	`, at, model.AgentOnline, deploymentHash)
	if err != nil {
		return fmt.Errorf("heartbeat agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.New(apierr.KindNotFound, "agent not registered for deployment")
	}
	return nil
}

// MarkStatus updates the status column directly, used by the staleness reaper.
func (r *AgentRepo) MarkStatus(deploymentHash string, status model.AgentStatus) error {
	_, err := r.db.Exec(`UPDATE agents SET status = ? WHERE deployment_hash = ?`, status, deploymentHash)
	if err != nil {
		return fmt.Errorf("mark agent status: %w", err)
	}
	return nil
}

// GetByDeployment looks up the agent bound to a deployment hash.
func (r *AgentRepo) GetByDeployment(deploymentHash string) (*model.Agent, error) {
	row := r.db.QueryRow(`
		SELECT id, deployment_hash, capabilities, version, system_info, last_heartbeat, status, created_at
		FROM agents WHERE deployment_hash = ?
	`, deploymentHash)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, apierr.New(apierr.KindNotFound, "agent not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	return a, nil
}

// ListStale returns agents whose last heartbeat precedes cutoff and whose
// status is not already offline, for the reaper to act on.
func (r *AgentRepo) ListStale(cutoff time.Time) ([]*model.Agent, error) {
	rows, err := r.db.Query(`
		SELECT id, deployment_hash, capabilities, version, system_info, last_heartbeat, status, created_at
		FROM agents WHERE last_heartbeat < ? AND status != ?
	`, cutoff, model.AgentOffline)
	if err != nil {
		return nil, fmt.Errorf("query stale agents: %w", err)
	}
	defer rows.Close()

	var out []*model.Agent
	for rows.Next() {
		a, err := scanAgentRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale agent: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row *sql.Row) (*model.Agent, error)   { return scanAgentAny(row) }
func scanAgentRows(rows *sql.Rows) (*model.Agent, error) { return scanAgentAny(rows) }

func scanAgentAny(s rowScanner) (*model.Agent, error) {
	var a model.Agent
	var caps, sysInfo sql.NullString
	var lastHeartbeat sql.NullTime

	if err := s.Scan(&a.ID, &a.DeploymentHash, &caps, &a.Version, &sysInfo, &lastHeartbeat, &a.Status, &a.CreatedAt); err != nil {
		return nil, err
	}
	if caps.Valid && caps.String != "" {
		a.Capabilities = strings.Split(caps.String, ",")
	}
	if sysInfo.Valid && sysInfo.String != "" {
		_ = json.Unmarshal([]byte(sysInfo.String), &a.SystemInfo)
	}
	if lastHeartbeat.Valid {
		a.LastHeartbeat = lastHeartbeat.Time
	}
	return &a, nil
}
