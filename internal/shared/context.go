package shared

import "context"

// Identity describes the authenticated caller. It is resolved once by the
// session middleware and passed explicitly into every workflow call.
type Identity struct {
	UserID int64
	Email  string
	Role   string
}

type identityContextKey struct{}

// ContextWithIdentity stores the resolved identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context. The second return
// value is false when no session was resolved for the request.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
