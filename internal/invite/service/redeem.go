package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"boxoffice/internal/audit"
	eventmodels "boxoffice/internal/event/models"
	"boxoffice/internal/identity"
	"boxoffice/internal/invite/models"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/sentinel"
	"boxoffice/pkg/requestcontext"
)

// Validate resolves a user-supplied code and checks it can still be used.
// Lazy expiry is applied before the status check.
func (s *Service) Validate(ctx context.Context, raw string) (*models.InviteCode, error) {
	code, err := models.NormalizeCode(raw)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, translate(err, "invite code not found", "failed to load invite code")
	}
	s.expireIfLapsed(ctx, c)
	if err := c.Usable(); err != nil {
		return nil, err
	}
	return c, nil
}

// Redeem grants the code's role to userID. Every step is a hard gate and a
// failure leaves no local change behind.
func (s *Service) Redeem(ctx context.Context, userID id.AccountID, raw string) (_ *models.RedemptionResult, err error) {
	ctx, span := s.tracer.Start(ctx, "invite.redeem")
	span.SetAttributes(attribute.String("invite.redeemer", userID.String()))
	defer func() {
		endSpan(span, err)
		if err != nil {
			s.countRedemption(string(dErrors.CodeOf(err)))
		}
	}()

	if _, err := s.resolveAccount(ctx, userID); err != nil {
		return nil, err
	}
	c, err := s.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("invite.role", string(c.Role)))
	event, err := s.resolveEvent(ctx, c.TargetEventID)
	if err != nil {
		return nil, err
	}

	hadRole, err := s.directory.HasRole(ctx, userID, c.Role)
	if err != nil {
		s.recordDirectoryFailure(ctx, c, userID, err)
		return nil, identity.Fault(err, "failed to read directory roles")
	}

	var assigned bool
	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		claimed, err := s.store.ClaimPending(txCtx, c.ID, userID, now)
		if err != nil {
			return s.claimFailure(txCtx, c.ID, err)
		}
		c = claimed
		if event != nil {
			if _, err := s.events.Grant(txCtx, eventmodels.StaffGrant{EventID: event.ID, AccountID: userID, GrantedAt: now}); err != nil {
				return translate(err, "event not found", "failed to record staff grant")
			}
		}
		if hadRole {
			return nil
		}
		if err := s.directory.AssignRole(txCtx, userID, c.Role); err != nil {
			s.recordDirectoryFailure(ctx, c, userID, err)
			return identity.Fault(err, "failed to assign role in identity directory")
		}
		assigned = true
		return nil
	})
	if err != nil {
		if assigned {
			s.revokeAfterFailedCommit(ctx, userID, c.Role)
		}
		return nil, err
	}

	roles, rolesErr := s.directory.GetRoles(ctx, userID)
	if rolesErr != nil {
		s.logger.WarnContext(ctx, "failed to re-read roles after redemption",
			"account_id", userID.String(),
			"error", rolesErr,
		)
	}

	s.countRedemption("success")
	s.logger.InfoContext(ctx, "invite code redeemed",
		"invite_code_id", c.ID.String(),
		"account_id", userID.String(),
		"role", string(c.Role),
	)
	s.recordRedemption(ctx, c, userID)

	result := &models.RedemptionResult{Role: c.Role, EventID: c.TargetEventID, Roles: roles}
	if event != nil {
		result.EventName = event.Name
	}
	return result, nil
}

// ClaimForAccount marks a validated code REDEEMED by accountID without
// touching the directory or staff grants. A lost race is
// CodeInvalidInviteCode; anything else is an infrastructure fault.
func (s *Service) ClaimForAccount(ctx context.Context, c *models.InviteCode, accountID id.AccountID) error {
	claimed, err := s.store.ClaimPending(ctx, c.ID, accountID, requestcontext.Now(ctx))
	if err != nil {
		return s.claimFailure(ctx, c.ID, err)
	}
	s.countRedemption("success")
	s.recordRedemption(ctx, claimed, accountID)
	return nil
}

// claimFailure explains a failed compare-and-set by reloading the code.
func (s *Service) claimFailure(ctx context.Context, codeID id.InviteCodeID, err error) error {
	if !errors.Is(err, sentinel.ErrInvalidState) {
		return translate(err, "invite code not found", "failed to redeem invite code")
	}
	current, getErr := s.store.Get(ctx, codeID)
	if getErr != nil {
		return translate(getErr, "invite code not found", "failed to reload invite code")
	}
	s.expireIfLapsed(ctx, current)
	if usable := current.Usable(); usable != nil {
		return usable
	}
	return dErrors.NewInvite(dErrors.InviteNotPending, "invite code could not be claimed")
}

func (s *Service) revokeAfterFailedCommit(ctx context.Context, userID id.AccountID, role identity.Role) {
	ctx = context.WithoutCancel(ctx)
	if err := s.directory.RevokeRole(ctx, userID, role); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke role after aborted redemption",
			"account_id", userID.String(),
			"role", string(role),
			"error", err,
		)
	}
}

func (s *Service) recordDirectoryFailure(ctx context.Context, c *models.InviteCode, userID id.AccountID, err error) {
	s.logger.ErrorContext(ctx, "identity directory failed during redemption",
		"invite_code_id", c.ID.String(),
		"account_id", userID.String(),
		"role", string(c.Role),
		"error", err,
	)
	target := userID
	s.record(ctx, audit.Entry{
		Action:       audit.ActionFailedInviteRedemption,
		Actor:        userID,
		Target:       &target,
		ResourceType: "invite_code",
		ResourceID:   c.ID.String(),
		EventID:      c.TargetEventID,
		Details:      roleDetails(c) + "; reason=directory_failure",
	})
}

// recordRedemption emits INVITE_REDEEMED followed by the grant-specific
// record for STAFF or ADMIN codes.
func (s *Service) recordRedemption(ctx context.Context, c *models.InviteCode, accountID id.AccountID) {
	target := accountID
	s.record(ctx, audit.Entry{
		Action:       audit.ActionInviteRedeemed,
		Actor:        accountID,
		Target:       &target,
		ResourceType: "invite_code",
		ResourceID:   c.ID.String(),
		EventID:      c.TargetEventID,
		Details:      roleDetails(c),
	})
	switch {
	case c.Role.IsEventScoped():
		s.record(ctx, audit.Entry{
			Action:       audit.ActionStaffAccessGranted,
			Actor:        accountID,
			Target:       &target,
			ResourceType: "event",
			ResourceID:   c.TargetEventID.String(),
			EventID:      c.TargetEventID,
			Details:      "via invite " + c.ID.String(),
		})
	case c.Role.IsHighestPrivilege():
		s.record(ctx, audit.Entry{
			Action:       audit.ActionAdminRoleGranted,
			Actor:        c.CreatedBy,
			Target:       &target,
			ResourceType: "invite_code",
			ResourceID:   c.ID.String(),
			Details:      "ADMIN granted to " + accountID.String() + " via invite issued by " + c.CreatedBy.String(),
		})
	}
}
