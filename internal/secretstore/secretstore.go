// Package secretstore defines the adapter through which agentbridge reads
// and writes per-agent secrets (HMAC keys, rotation material) without
// importing a concrete secret-management SDK, per spec.md §4.8: Vault is
// an external collaborator reached over its HTTP KV-v2 API, not a Go
// dependency of this module.
package secretstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentbridge/agentbridge/internal/apierr"
	"github.com/agentbridge/agentbridge/internal/cache"
)

// SecretStore is the narrow interface every adapter implements.
type SecretStore interface {
	Get(ctx context.Context, path string) (map[string]string, error)
	Put(ctx context.Context, path string, data map[string]string) error
	Delete(ctx context.Context, path string) error
}

// CachedStore wraps a SecretStore with a short-TTL read-through cache
// (<=60s per spec.md §4.8), backed by the same cache.Cache abstraction
// the bearer-token verifier uses.
type CachedStore struct {
	backend SecretStore
	cache   cache.Cache
	ttl     time.Duration
	mu      sync.Mutex
}

func NewCachedStore(backend SecretStore, c cache.Cache, ttl time.Duration) *CachedStore {
	return &CachedStore{backend: backend, cache: c, ttl: ttl}
}

func (s *CachedStore) Get(ctx context.Context, path string) (map[string]string, error) {
	if raw, ok, err := s.cache.Get(ctx, "secret:"+path); err == nil && ok {
		return decodeKV(raw), nil
	}

	data, err := s.backend.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	if raw := encodeKV(data); raw != nil {
		_ = s.cache.Set(ctx, "secret:"+path, raw, s.ttl)
	}
	return data, nil
}

func (s *CachedStore) Put(ctx context.Context, path string, data map[string]string) error {
	if err := s.backend.Put(ctx, path, data); err != nil {
		return err
	}
	return s.cache.Delete(ctx, "secret:"+path)
}

func (s *CachedStore) Delete(ctx context.Context, path string) error {
	if err := s.backend.Delete(ctx, path); err != nil {
		return err
	}
	return s.cache.Delete(ctx, "secret:"+path)
}

// Memory is an in-process SecretStore used in tests and single-node
// deployments that don't run an external KV service.
type Memory struct {
	mu    sync.RWMutex
	items map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]map[string]string)}
}

func (m *Memory) Get(_ context.Context, path string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[path]
	if !ok {
		return nil, apierr.New(apierr.KindNotFound, fmt.Sprintf("no secret at %s", path))
	}
	out := make(map[string]string, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out, nil
}

func (m *Memory) Put(_ context.Context, path string, data map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]string, len(data))
	for k, v := range data {
		cp[k] = v
	}
	m.items[path] = cp
	return nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, path)
	return nil
}
