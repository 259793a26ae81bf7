// Package identity resolves which trade role the authenticated user holds.
package identity

import (
	"context"

	"github.com/fxlane/fxlane/errs"
	"github.com/fxlane/fxlane/internal/schema"
)

// Provider supplies the current authenticated user. Authentication itself
// is an external collaborator; the engine only consumes its result.
type Provider interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// Static is a Provider pinned to one user id, used by tests and by
// deployments where the session token is resolved elsewhere.
type Static string

// CurrentUserID returns the pinned id.
func (s Static) CurrentUserID(context.Context) (string, error) {
	if s == "" {
		return "", errs.New("identity", errs.CodeUnauthorized,
			errs.WithMessage("no authenticated user"))
	}
	return string(s), nil
}

// Resolver maps the authenticated identity onto trade roles.
type Resolver struct {
	provider Provider
}

// NewResolver constructs a Resolver over the given provider.
func NewResolver(provider Provider) *Resolver {
	return &Resolver{provider: provider}
}

// UserID returns the current authenticated user id.
func (r *Resolver) UserID(ctx context.Context) (string, error) {
	return r.provider.CurrentUserID(ctx)
}

// Role resolves the caller's role on the given trade. Identities that are
// not participants resolve to RoleObserver, never an error: observing a
// trade is legal, initiating transitions on it is not.
func (r *Resolver) Role(ctx context.Context, trade schema.Trade) (schema.Role, error) {
	userID, err := r.provider.CurrentUserID(ctx)
	if err != nil {
		return schema.RoleObserver, err
	}
	return trade.RoleOf(userID), nil
}
