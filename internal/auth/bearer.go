package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/agentbridge/agentbridge/internal/apierr"
	"github.com/agentbridge/agentbridge/internal/cache"
)

// BearerVerifier authenticates end-user requests by verifying a JWT against
// the configured OIDC issuer (spec.md §4.6's "delegated to an external
// identity service"), caching verification outcomes for a short TTL so a
// burst of requests from the same user doesn't re-verify against the
// issuer's JWKS endpoint every time.
type BearerVerifier struct {
	verifier *oidc.IDTokenVerifier
	cache    cache.Cache
	ttl      time.Duration
}

// NewBearerVerifier constructs a verifier against issuer/audience. ctx is
// used only for the initial OIDC discovery round trip.
func NewBearerVerifier(ctx context.Context, issuer, audience string, c cache.Cache, ttl time.Duration) (*BearerVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc issuer %s: %w", issuer, err)
	}
	return &BearerVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: audience}),
		cache:    c,
		ttl:      ttl,
	}, nil
}

type cachedClaims struct {
	Subject string `json:"subject"`
	IsAdmin bool   `json:"is_admin"`
}

// Verify extracts a bearer token from r's Authorization header, verifies it
// (consulting and populating the cache), and returns the Identity.
func (v *BearerVerifier) Verify(ctx context.Context, r *http.Request) (*Identity, error) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, apierr.New(apierr.KindUnauthenticated, "missing bearer token")
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	cacheKey := tokenCacheKey(raw)
	if hit, ok, err := v.cache.Get(ctx, cacheKey); err == nil && ok {
		var cc cachedClaims
		if err := json.Unmarshal(hit, &cc); err == nil {
			return &Identity{Method: MethodBearer, Subject: cc.Subject, IsAdmin: cc.IsAdmin}, nil
		}
	}

	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindUnauthenticated, "bearer token verification failed", err)
	}

	var claims struct {
		Subject string `json:"sub"`
		Roles   []string `json:"roles"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, apierr.Wrap(apierr.KindUnauthenticated, "malformed token claims", err)
	}
	if claims.Subject == "" {
		return nil, apierr.New(apierr.KindUnauthenticated, "token has no subject claim")
	}

	isAdmin := false
	for _, role := range claims.Roles {
		if role == "admin" {
			isAdmin = true
		}
	}

	cc := cachedClaims{Subject: claims.Subject, IsAdmin: isAdmin}
	if raw, err := json.Marshal(cc); err == nil {
		_ = v.cache.Set(ctx, cacheKey, raw, v.ttl)
	}

	return &Identity{Method: MethodBearer, Subject: claims.Subject, IsAdmin: isAdmin}, nil
}

func tokenCacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "bearer:" + hex.EncodeToString(sum[:])
}

// ParseUnverified is used only by admin tooling to inspect a token's claims
// without contacting the issuer; never used on the request-verification path.
func ParseUnverified(raw string) (jwt.MapClaims, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}
