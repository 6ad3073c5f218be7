package auth

import (
	"context"

	"locafy/pkg/model"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	ID    string
	Email string
	Name  string
	Role  model.Role
}

func (i Identity) IsProvider() bool {
	return i.Role == model.RoleProvider
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
