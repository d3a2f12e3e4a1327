package auth

import (
	"context"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	bypassKey   contextKey = "bypass"
)

// ContextWithIdentity returns a new context carrying the authenticated
// caller identity.
func ContextWithIdentity(ctx context.Context, identity string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	identity, ok := ctx.Value(identityKey).(string)
	if !ok || identity == "" {
		return "", false
	}
	return identity, true
}

// ContextWithBypass marks the context as authorization-exempt. Core
// operations (hierarchy flattening, materialization) take this explicitly
// after the caller has authorized the root data set; there is no ambient
// bypass state threaded through call chains.
func ContextWithBypass(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, bypassKey, true)
}

// BypassFromContext reports whether authorization is explicitly bypassed.
func BypassFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	bypass, ok := ctx.Value(bypassKey).(bool)
	return ok && bypass
}
