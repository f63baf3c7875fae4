package shared

import "context"

// Principal describes the authenticated service calling the decision API.
type Principal struct {
	ClientID int64
	Name     string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the caller principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the caller principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
