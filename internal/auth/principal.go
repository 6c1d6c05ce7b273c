package auth

import (
	"context"
)

// Principal is the caller identity handed to every service call. The zero
// value is an anonymous caller.
type Principal struct {
	UserID  int64
	IsStaff bool
}

func (p Principal) Authenticated() bool { return p.UserID > 0 }

func (p Principal) IsAdmin() bool { return p.Authenticated() && p.IsStaff }

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext returns the principal set by Middleware, or an anonymous one.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey).(Principal); ok {
		return p
	}
	return Principal{}
}
