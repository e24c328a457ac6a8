package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"boxoffice/internal/audit"
	"boxoffice/internal/invite/models"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/sentinel"
	"boxoffice/pkg/requestcontext"
)

// Revoke cancels a PENDING code. Lazy expiry runs first, so a lapsed code
// reports EXPIRED rather than being revoked.
func (s *Service) Revoke(ctx context.Context, revokerID id.AccountID, codeID id.InviteCodeID, reason string) (*models.InviteCode, error) {
	reason, err := models.NormalizeRevokeReason(reason)
	if err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, codeID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.StatusPending {
		return nil, notRevocable(c.Status)
	}

	revoked, err := s.store.Revoke(ctx, codeID, reason, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			current, getErr := s.Get(ctx, codeID)
			if getErr != nil {
				return nil, getErr
			}
			return nil, notRevocable(current.Status)
		}
		return nil, translate(err, "invite code not found", "failed to revoke invite code")
	}

	s.logger.InfoContext(ctx, "invite code revoked",
		"invite_code_id", codeID.String(),
		"revoked_by", revokerID.String(),
	)
	details := roleDetails(revoked)
	if reason != "" {
		details += "; reason=" + reason
	}
	s.record(ctx, audit.Entry{
		Action:       audit.ActionInviteRevoked,
		Actor:        revokerID,
		ResourceType: "invite_code",
		ResourceID:   codeID.String(),
		EventID:      revoked.TargetEventID,
		Details:      details,
	})
	return revoked, nil
}

func notRevocable(status models.Status) error {
	return dErrors.NewInvite(dErrors.InviteNotPending,
		fmt.Sprintf("only PENDING invite codes can be revoked; code is %s", status))
}

// MarkExpiredCodes flips every lapsed PENDING code to EXPIRED and returns
// how many changed. Running it again with nothing new to expire returns 0.
func (s *Service) MarkExpiredCodes(ctx context.Context, now time.Time) (int, error) {
	n, err := s.store.MarkExpiredBefore(ctx, now)
	if err != nil {
		return 0, translate(err, "", "failed to expire invite codes")
	}
	if n == 0 {
		return 0, nil
	}
	if s.metrics != nil {
		s.metrics.Expired.Add(float64(n))
	}
	s.logger.InfoContext(ctx, "invite codes expired", "count", n)
	s.record(ctx, audit.Entry{
		Action:       audit.ActionInvitesExpired,
		Actor:        s.system,
		ResourceType: "invite_code",
		Details:      "count=" + strconv.Itoa(n),
	})
	return n, nil
}
