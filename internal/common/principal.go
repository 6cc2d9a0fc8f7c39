package common

import (
	"context"
	"strings"
)

// Principal identifies the caller of a request: either an authenticated
// user (by email, as issued by the hosted auth provider) or an anonymous
// guest identifier. Exactly one of the two fields is set.
type Principal struct {
	Email  string
	AnonID string
	Admin  bool
}

// Anonymous reports whether the principal is an unauthenticated guest.
func (p Principal) Anonymous() bool {
	return strings.TrimSpace(p.Email) == ""
}

// Owner returns the cart/order owner key for this principal.
func (p Principal) Owner() string {
	if !p.Anonymous() {
		return p.Email
	}
	return p.AnonID
}

type ctxKey string

const principalKey ctxKey = "auth/principal"

// WithPrincipal stores the caller identity on the provided context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the caller identity from the context. A zero
// Principal means the request carried no identity at all.
func PrincipalFrom(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey).(Principal); ok {
		return p
	}
	return Principal{}
}
