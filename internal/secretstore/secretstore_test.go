package secretstore

import (
	"context"
	"testing"
	"time"

	"github.com/agentbridge/agentbridge/internal/apierr"
	"github.com/agentbridge/agentbridge/internal/cache"
)

func TestMemoryPutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.Put(ctx, "agents/dep-1", map[string]string{"hmac_key": "abc"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := m.Get(ctx, "agents/dep-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["hmac_key"] != "abc" {
		t.Errorf("expected hmac_key=abc, got %v", got)
	}

	if err := m.Delete(ctx, "agents/dep-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Get(ctx, "agents/dep-1"); err == nil {
		t.Fatal("expected error after delete")
	} else if e, ok := apierr.As(err); !ok || e.Kind != apierr.KindNotFound {
		t.Errorf("expected KindNotFound after delete, got %v", err)
	}
}

func TestMemoryGetReturnsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Put(ctx, "p", map[string]string{"k": "v"})

	got, _ := m.Get(ctx, "p")
	got["k"] = "mutated"

	again, _ := m.Get(ctx, "p")
	if again["k"] != "v" {
		t.Error("expected stored secret to be unaffected by mutating a previous Get result")
	}
}

func TestCachedStoreServesFromCacheOnHit(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()
	_ = backend.Put(ctx, "p", map[string]string{"k": "v1"})

	c := cache.NewMemory()
	cs := NewCachedStore(backend, c, time.Minute)

	got, err := cs.Get(ctx, "p")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["k"] != "v1" {
		t.Fatalf("expected v1, got %v", got)
	}

	// Mutate the backend directly; a cache hit should still serve the stale value.
	_ = backend.Put(ctx, "p", map[string]string{"k": "v2"})
	got, err = cs.Get(ctx, "p")
	if err != nil {
		t.Fatalf("get (cached): %v", err)
	}
	if got["k"] != "v1" {
		t.Errorf("expected cached read to still return v1, got %v", got)
	}
}

func TestCachedStorePutInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()
	c := cache.NewMemory()
	cs := NewCachedStore(backend, c, time.Minute)

	_ = cs.Put(ctx, "p", map[string]string{"k": "v1"})
	if _, err := cs.Get(ctx, "p"); err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := cs.Put(ctx, "p", map[string]string{"k": "v2"}); err != nil {
		t.Fatalf("put v2: %v", err)
	}
	got, err := cs.Get(ctx, "p")
	if err != nil {
		t.Fatalf("get after put: %v", err)
	}
	if got["k"] != "v2" {
		t.Errorf("expected put to invalidate the cache entry, got %v", got)
	}
}
