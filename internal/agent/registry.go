// Package agent implements the agent registry of spec.md §4.1: binding one
// execution agent per deployment, heartbeats, and secret-backed HMAC key
// issuance on registration.
package agent

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentbridge/agentbridge/internal/model"
	"github.com/agentbridge/agentbridge/internal/secretstore"
	"github.com/agentbridge/agentbridge/internal/store"
)

// Registry manages agent lifecycle: registration, heartbeats and lookup.
type Registry struct {
	repo         *store.AgentRepo
	deployments  *store.DeploymentRepo
	secrets      secretstore.SecretStore
	secretPrefix string
}

func NewRegistry(repo *store.AgentRepo, deployments *store.DeploymentRepo, secrets secretstore.SecretStore, secretPrefix string) *Registry {
	return &Registry{repo: repo, deployments: deployments, secrets: secrets, secretPrefix: secretPrefix}
}

// Register binds an agent to deploymentHash, minting a fresh HMAC key and
// storing it in the secret store. The raw key is returned once, to the
// caller only — it is never persisted in the relational store.
func (r *Registry) Register(ctx context.Context, deploymentHash, userID, version string, capabilities []string, systemInfo map[string]string) (*model.Agent, string, error) {
	now := time.Now()

	if err := r.deployments.Touch(deploymentHash, userID, nil, now); err != nil {
		return nil, "", fmt.Errorf("touch deployment: %w", err)
	}

	a := &model.Agent{
		ID:             uuid.NewString(),
		DeploymentHash: deploymentHash,
		Capabilities:   capabilities,
		Version:        version,
		SystemInfo:     systemInfo,
		LastHeartbeat:  now,
		Status:         model.AgentOnline,
		CreatedAt:      now,
	}
	if err := r.repo.Upsert(a); err != nil {
		return nil, "", fmt.Errorf("upsert agent: %w", err)
	}

	key, err := generateKey()
	if err != nil {
		return nil, "", fmt.Errorf("generate agent key: %w", err)
	}
	path := fmt.Sprintf("%s/%s", r.secretPrefix, deploymentHash)
	if err := r.secrets.Put(ctx, path, map[string]string{"hmac_key": key}); err != nil {
		return nil, "", fmt.Errorf("store agent key: %w", err)
	}

	return a, key, nil
}

// Heartbeat records liveness for an already-registered agent.
func (r *Registry) Heartbeat(deploymentHash string) error {
	return r.repo.Heartbeat(deploymentHash, time.Now())
}

// Lookup returns the agent bound to deploymentHash.
func (r *Registry) Lookup(deploymentHash string) (*model.Agent, error) {
	return r.repo.GetByDeployment(deploymentHash)
}

// RotateKey issues a fresh HMAC key for an already-registered agent,
// invalidating the previous one immediately (spec.md §4.8 rotation).
func (r *Registry) RotateKey(ctx context.Context, deploymentHash string) (string, error) {
	key, err := generateKey()
	if err != nil {
		return "", fmt.Errorf("generate agent key: %w", err)
	}
	path := fmt.Sprintf("%s/%s", r.secretPrefix, deploymentHash)
	if err := r.secrets.Put(ctx, path, map[string]string{"hmac_key": key}); err != nil {
		return "", fmt.Errorf("store rotated key: %w", err)
	}
	return key, nil
}

func generateKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
