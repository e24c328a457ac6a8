package identity

import (
	"context"
	"log/slog"

	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/circuit"
)

// Guarded decorates a Directory with a circuit breaker that tracks
// consecutive remote failures. Calls always go through; the breaker only
// drives health reporting and state-change logs.
type Guarded struct {
	next    Directory
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(next Directory, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{next: next, breaker: breaker, logger: logger}
}

// Healthy reports whether the directory is reachable as far as recent
// calls can tell.
func (g *Guarded) Healthy() bool {
	return !g.breaker.IsOpen()
}

func (g *Guarded) observe(ctx context.Context, op string, err error) {
	if err == nil {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "identity directory recovered", "breaker", g.breaker.Name())
		}
		return
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.logger.ErrorContext(ctx, "identity directory degraded",
			"breaker", g.breaker.Name(),
			"operation", op,
			"error", err,
		)
	}
}

func (g *Guarded) CreateIdentity(ctx context.Context, email, password, displayName string) (id.AccountID, error) {
	accountID, err := g.next.CreateIdentity(ctx, email, password, displayName)
	g.observe(ctx, "create_identity", ignoreConflict(err))
	return accountID, err
}

func (g *Guarded) DeleteIdentity(ctx context.Context, accountID id.AccountID) error {
	err := g.next.DeleteIdentity(ctx, accountID)
	g.observe(ctx, "delete_identity", err)
	return err
}

func (g *Guarded) AssignRole(ctx context.Context, accountID id.AccountID, role Role) error {
	err := g.next.AssignRole(ctx, accountID, role)
	g.observe(ctx, "assign_role", err)
	return err
}

func (g *Guarded) RevokeRole(ctx context.Context, accountID id.AccountID, role Role) error {
	err := g.next.RevokeRole(ctx, accountID, role)
	g.observe(ctx, "revoke_role", err)
	return err
}

func (g *Guarded) GetRoles(ctx context.Context, accountID id.AccountID) ([]Role, error) {
	roles, err := g.next.GetRoles(ctx, accountID)
	g.observe(ctx, "get_roles", err)
	return roles, err
}

func (g *Guarded) HasRole(ctx context.Context, accountID id.AccountID, role Role) (bool, error) {
	ok, err := g.next.HasRole(ctx, accountID, role)
	g.observe(ctx, "has_role", err)
	return ok, err
}

func (g *Guarded) FindIDByEmail(ctx context.Context, email string) (id.AccountID, bool, error) {
	accountID, found, err := g.next.FindIDByEmail(ctx, email)
	g.observe(ctx, "find_id_by_email", err)
	return accountID, found, err
}

func (g *Guarded) SetEnabled(ctx context.Context, accountID id.AccountID, enabled bool) error {
	err := g.next.SetEnabled(ctx, accountID, enabled)
	g.observe(ctx, "set_enabled", err)
	return err
}
