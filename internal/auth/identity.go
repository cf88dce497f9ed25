// Package auth implements the multi-method authentication pipeline of
// spec.md §4.6: agent HMAC, bearer/OIDC user auth with a short-TTL cache,
// and an anonymous fallback, tried in that order.
package auth

// Method names an authentication method that produced an Identity.
type Method string

const (
	MethodAgentHMAC Method = "agent_hmac"
	MethodBearer    Method = "bearer"
	MethodAnonymous Method = "anonymous"
)

// Identity is the authenticated principal attached to a request context.
type Identity struct {
	Method         Method
	Subject        string
	DeploymentHash string // set only for MethodAgentHMAC
	IsAdmin        bool
}
