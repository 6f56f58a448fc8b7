package httpx

import (
	"context"

	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
)

// principalKey is an unexported context key type for the request principal.
type principalKey struct{}

// SetPrincipalInContext attaches the authenticated principal to the context.
func SetPrincipalInContext(ctx context.Context, p *domainauth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, or nil when the
// request never passed the authentication gate.
func PrincipalFromContext(ctx context.Context) *domainauth.Principal {
	p, _ := ctx.Value(principalKey{}).(*domainauth.Principal)
	return p
}

// requestIDKey is an unexported context key type for the request id.
type requestIDKey struct{}

// RequestIDFromContext returns the request id assigned by the RequestID
// middleware, or empty when absent.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
