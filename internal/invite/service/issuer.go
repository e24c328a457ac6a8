package service

import (
	"context"
	"slices"

	eventmodels "boxoffice/internal/event/models"
	"boxoffice/internal/identity"
	"boxoffice/internal/invite/models"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
)

// OwnershipChecker is satisfied by *authz.Engine.
type OwnershipChecker interface {
	RequireOrganizer(ctx context.Context, userID id.AccountID, eventID id.EventID) (*eventmodels.Event, error)
}

// Issuer applies the issuance policy on top of Service:
//   - ADMIN may issue and revoke any code
//   - ORGANIZER may issue STAFF codes for events they organize
//   - a creator may revoke their own codes
type Issuer struct {
	invites   *Service
	ownership OwnershipChecker
}

func NewIssuer(invites *Service, ownership OwnershipChecker) *Issuer {
	return &Issuer{invites: invites, ownership: ownership}
}

func (i *Issuer) Issue(ctx context.Context, caller id.AccountID, roles []identity.Role, req GenerateRequest) (*models.InviteCode, error) {
	if err := i.mayIssue(ctx, caller, roles, req); err != nil {
		return nil, err
	}
	return i.invites.Generate(ctx, caller, req)
}

func (i *Issuer) mayIssue(ctx context.Context, caller id.AccountID, roles []identity.Role, req GenerateRequest) error {
	if slices.Contains(roles, identity.RoleAdmin) {
		return nil
	}
	if slices.Contains(roles, identity.RoleOrganizer) && req.Role == identity.RoleStaff {
		if req.EventID == nil {
			return dErrors.New(dErrors.CodeInvalidInput, "event id is required for STAFF invites")
		}
		_, err := i.ownership.RequireOrganizer(ctx, caller, *req.EventID)
		return err
	}
	return dErrors.Newf(dErrors.CodeForbidden, "not allowed to issue %s invites", req.Role)
}

func (i *Issuer) Revoke(ctx context.Context, caller id.AccountID, roles []identity.Role, codeID id.InviteCodeID, reason string) (*models.InviteCode, error) {
	if !slices.Contains(roles, identity.RoleAdmin) {
		c, err := i.invites.Get(ctx, codeID)
		if err != nil {
			return nil, err
		}
		if c.CreatedBy != caller {
			return nil, dErrors.New(dErrors.CodeForbidden, "access denied to invite code: not its creator")
		}
	}
	return i.invites.Revoke(ctx, caller, codeID, reason)
}

// ListMine lists codes the caller issued.
func (i *Issuer) ListMine(ctx context.Context, caller id.AccountID, page id.PageRequest) (id.Page[*models.InviteCode], error) {
	return i.invites.ListByCreator(ctx, caller, page)
}
