// Package identity defines the external identity directory port and the pure
// helpers that interpret directory-issued role claims.
package identity

import (
	"context"

	id "boxoffice/pkg/domain"
)

//go:generate mockgen -source=directory.go -destination=mocks/mocks.go -package=mocks Directory

// Directory owns identities, passwords and coarse role grants. Every call is
// a remote, fallible operation; callers must not assume partial success.
//
// CreateIdentity returns sentinel.ErrAlreadyUsed when the e-mail is taken.
// DeleteIdentity is idempotent for identities that no longer exist.
type Directory interface {
	CreateIdentity(ctx context.Context, email, password, displayName string) (id.AccountID, error)
	DeleteIdentity(ctx context.Context, accountID id.AccountID) error
	AssignRole(ctx context.Context, accountID id.AccountID, role Role) error
	RevokeRole(ctx context.Context, accountID id.AccountID, role Role) error
	GetRoles(ctx context.Context, accountID id.AccountID) ([]Role, error)
	HasRole(ctx context.Context, accountID id.AccountID, role Role) (bool, error)
	FindIDByEmail(ctx context.Context, email string) (id.AccountID, bool, error)
	SetEnabled(ctx context.Context, accountID id.AccountID, enabled bool) error
}
