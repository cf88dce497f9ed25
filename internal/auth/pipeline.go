package auth

import (
	"context"
	"net/http"

	"github.com/agentbridge/agentbridge/internal/apierr"
)

// Pipeline tries authentication methods in order: agent HMAC, then bearer,
// then an anonymous identity if allowed. This mirrors spec.md §4.6's
// ordered-chain design; each method either produces an Identity, declines
// (its headers are absent) or fails outright.
type Pipeline struct {
	hmac           *HMACVerifier
	bearer         *BearerVerifier
	allowAnonymous bool
}

func NewPipeline(hmac *HMACVerifier, bearer *BearerVerifier, allowAnonymous bool) *Pipeline {
	return &Pipeline{hmac: hmac, bearer: bearer, allowAnonymous: allowAnonymous}
}

// Authenticate resolves the Identity for r. body is the already-read
// request body, needed by the HMAC verifier to recompute the signature.
func (p *Pipeline) Authenticate(ctx context.Context, r *http.Request, body []byte) (*Identity, error) {
	if r.Header.Get(headerSignature) != "" {
		return p.hmac.Verify(ctx, r, body)
	}

	if r.Header.Get("Authorization") != "" {
		if p.bearer == nil {
			return nil, apierr.New(apierr.KindUnauthenticated, "bearer authentication is not configured")
		}
		return p.bearer.Verify(ctx, r)
	}

	if p.allowAnonymous {
		return &Identity{Method: MethodAnonymous, Subject: "anonymous"}, nil
	}

	return nil, apierr.New(apierr.KindUnauthenticated, "no credentials presented")
}
