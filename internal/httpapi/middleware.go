package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/apierr"
	"github.com/agentbridge/agentbridge/internal/auth"
	"github.com/agentbridge/agentbridge/internal/policy"
	"github.com/agentbridge/agentbridge/internal/ratelimit"
)

// SecurityHeadersMiddleware sets a fixed Server header and
// X-Content-Type-Options: nosniff before the handler runs, grounded on the
// teacher's headerRemovalWriter (server/middleware.go). It does not wrap
// the ResponseWriter, so headers the handler sets afterwards are kept.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Server", "agentbridge")
		h.Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

type identityCtxKey struct{}

// IdentityFromContext retrieves the Identity attached by AuthMiddleware.
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(*auth.Identity)
	return id, ok
}

// AuthMiddleware resolves an Identity via the auth pipeline and attaches
// it to the request context, or writes an error envelope and stops the
// chain on failure.
func AuthMiddleware(pipeline *auth.Pipeline, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := readAndRestoreBody(r)
			if err != nil {
				writeError(w, log, apierr.Wrap(apierr.KindInvalidArgument, "could not read request body", err))
				return
			}

			identity, err := pipeline.Authenticate(r.Context(), r, body)
			if err != nil {
				writeError(w, log, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityCtxKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthorizeMiddleware checks the request's Identity against the policy
// Authorizer for (object, action), returning PermissionDenied on mismatch.
func AuthorizeMiddleware(authz *policy.Authorizer, object, action string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, log, apierr.New(apierr.KindUnauthenticated, "no identity on request"))
				return
			}
			if identity.IsAdmin {
				next.ServeHTTP(w, r)
				return
			}
			if !authz.Allowed(identity.Subject, object, action) {
				writeError(w, log, apierr.New(apierr.KindPermissionDenied, "not authorized for this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware rejects requests past the per-subject token bucket,
// backing the RateLimited/429 kind (spec.md §7).
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			subject := r.RemoteAddr
			if ok {
				subject = identity.Subject
			}
			if !limiter.Allow(subject) {
				writeError(w, log, apierr.New(apierr.KindRateLimited, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
