package domain

import "context"

type principalKey struct{}

// WithPrincipal stores the authenticated user in the request context.
func WithPrincipal(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, principalKey{}, u)
}

// PrincipalFromContext extracts the authenticated user from the context.
func PrincipalFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(principalKey{}).(*User)
	return u, ok
}
