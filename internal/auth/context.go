package auth

import (
	"context"

	"example.com/fitness/internal/domain"
)

type contextKey string

const principalKey contextKey = "fitness-auth-principal"

// WithPrincipal stores the principal on the context.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext retrieves the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}
