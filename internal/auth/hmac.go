package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agentbridge/agentbridge/internal/apierr"
	"github.com/agentbridge/agentbridge/internal/secretstore"
)

const (
	headerDeploymentHash = "X-Agent-Deployment"
	headerTimestamp      = "X-Agent-Timestamp"
	headerNonce          = "X-Request-Id"
	headerSignature      = "X-Agent-Signature"
)

// HMACVerifier authenticates agent requests per spec.md §4.6: a canonical
// request string is signed with the agent's per-deployment secret over
// crypto/hmac+sha256 (no third-party HMAC library improves on the
// standard library here — see DESIGN.md), and the timestamp must fall
// within ClockSkew of now to bound replay.
type HMACVerifier struct {
	secrets      secretstore.SecretStore
	secretPrefix string
	clockSkew    time.Duration
}

func NewHMACVerifier(secrets secretstore.SecretStore, secretPrefix string, clockSkew time.Duration) *HMACVerifier {
	return &HMACVerifier{secrets: secrets, secretPrefix: secretPrefix, clockSkew: clockSkew}
}

// Canonical builds the string-to-sign: method, path, deployment hash,
// timestamp and nonce joined by newlines, plus the raw body.
func Canonical(method, path, deploymentHash, timestamp, nonce string, body []byte) []byte {
	parts := []string{method, path, deploymentHash, timestamp, nonce}
	buf := []byte(strings.Join(parts, "\n") + "\n")
	return append(buf, body...)
}

// Verify checks the X-Agent-* headers on r against the deployment's stored
// secret and returns the authenticated Identity on success.
func (v *HMACVerifier) Verify(ctx context.Context, r *http.Request, body []byte) (*Identity, error) {
	deploymentHash := r.Header.Get(headerDeploymentHash)
	timestamp := r.Header.Get(headerTimestamp)
	nonce := r.Header.Get(headerNonce)
	signature := r.Header.Get(headerSignature)

	if deploymentHash == "" || timestamp == "" || signature == "" {
		return nil, apierr.New(apierr.KindUnauthenticated, "missing agent signature headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, apierr.New(apierr.KindUnauthenticated, "invalid timestamp header")
	}
	skew := time.Since(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.clockSkew {
		return nil, apierr.New(apierr.KindUnauthenticated, "request timestamp outside allowed window")
	}

	secretPath := fmt.Sprintf("%s/%s", v.secretPrefix, deploymentHash)
	secretData, err := v.secrets.Get(ctx, secretPath)
	if err != nil {
		if e, ok := apierr.As(err); ok && e.Kind == apierr.KindNotFound {
			return nil, apierr.New(apierr.KindUnauthenticated, "unknown agent deployment")
		}
		return nil, fmt.Errorf("load agent secret: %w", err)
	}
	key := secretData["hmac_key"]
	if key == "" {
		return nil, apierr.New(apierr.KindUnauthenticated, "agent has no configured key")
	}

	expected := Sign([]byte(key), Canonical(r.Method, r.URL.Path, deploymentHash, timestamp, nonce, body))
	given, err := hex.DecodeString(signature)
	if err != nil || subtle.ConstantTimeCompare(given, expected) != 1 {
		return nil, apierr.New(apierr.KindUnauthenticated, "signature mismatch")
	}

	return &Identity{Method: MethodAgentHMAC, Subject: "agent:" + deploymentHash, DeploymentHash: deploymentHash}, nil
}

// Sign returns the raw HMAC-SHA256 of msg under key.
func Sign(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// SignHex is Sign with hex-encoded output, for constructing test requests
// and for agent-side client code.
func SignHex(key, msg []byte) string {
	return hex.EncodeToString(Sign(key, msg))
}
