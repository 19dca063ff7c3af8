package auth

import "context"

// Identity is the caller as asserted by the identity provider.
type Identity struct {
	// Subject is the identity provider's user id.
	Subject string
	Email   string
	Name    string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// Subject returns the caller's identity-provider id, or "" for anonymous callers.
func Subject(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id.Subject
	}
	return ""
}
