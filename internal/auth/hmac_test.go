package auth

import (
	"context"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/agentbridge/agentbridge/internal/apierr"
	"github.com/agentbridge/agentbridge/internal/secretstore"
)

func TestHMACVerifierAcceptsValidSignature(t *testing.T) {
	ctx := context.Background()
	secrets := secretstore.NewMemory()
	if err := secrets.Put(ctx, "agentbridge/agents/dep-1", map[string]string{"hmac_key": "topsecret"}); err != nil {
		t.Fatalf("seed secret: %v", err)
	}

	v := NewHMACVerifier(secrets, "agentbridge/agents", 5*time.Minute)

	body := []byte(`{"hello":"world"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := "req-1"
	sig := SignHex([]byte("topsecret"), Canonical("POST", "/api/v1/agent/commands/report", "dep-1", ts, nonce, body))

	req := httptest.NewRequest("POST", "/api/v1/agent/commands/report", nil)
	req.Header.Set(headerDeploymentHash, "dep-1")
	req.Header.Set(headerTimestamp, ts)
	req.Header.Set(headerNonce, nonce)
	req.Header.Set(headerSignature, sig)

	id, err := v.Verify(ctx, req, body)
	if err != nil {
		t.Fatalf("expected verification to succeed, got %v", err)
	}
	if id.DeploymentHash != "dep-1" {
		t.Errorf("expected deployment hash dep-1, got %s", id.DeploymentHash)
	}
}

func TestHMACVerifierRejectsStaleTimestamp(t *testing.T) {
	ctx := context.Background()
	secrets := secretstore.NewMemory()
	_ = secrets.Put(ctx, "agentbridge/agents/dep-1", map[string]string{"hmac_key": "topsecret"})

	v := NewHMACVerifier(secrets, "agentbridge/agents", 5*time.Minute)

	body := []byte(`{}`)
	ts := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
	sig := SignHex([]byte("topsecret"), Canonical("POST", "/x", "dep-1", ts, "n1", body))

	req := httptest.NewRequest("POST", "/x", nil)
	req.Header.Set(headerDeploymentHash, "dep-1")
	req.Header.Set(headerTimestamp, ts)
	req.Header.Set(headerNonce, "n1")
	req.Header.Set(headerSignature, sig)

	_, err := v.Verify(ctx, req, body)
	if e, ok := apierr.As(err); !ok || e.Kind != apierr.KindUnauthenticated {
		t.Errorf("expected KindUnauthenticated for stale timestamp, got %v", err)
	}
}

func TestHMACVerifierRejectsTamperedBody(t *testing.T) {
	ctx := context.Background()
	secrets := secretstore.NewMemory()
	_ = secrets.Put(ctx, "agentbridge/agents/dep-1", map[string]string{"hmac_key": "topsecret"})

	v := NewHMACVerifier(secrets, "agentbridge/agents", 5*time.Minute)

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := SignHex([]byte("topsecret"), Canonical("POST", "/x", "dep-1", ts, "n1", []byte(`{"a":1}`)))

	req := httptest.NewRequest("POST", "/x", nil)
	req.Header.Set(headerDeploymentHash, "dep-1")
	req.Header.Set(headerTimestamp, ts)
	req.Header.Set(headerNonce, "n1")
	req.Header.Set(headerSignature, sig)

	_, err := v.Verify(ctx, req, []byte(`{"a":2}`))
	if e, ok := apierr.As(err); !ok || e.Kind != apierr.KindUnauthenticated {
		t.Errorf("expected KindUnauthenticated for tampered body, got %v", err)
	}
}
