package service

import (
	"context"
	"log/slog"
	"strings"

	"boxoffice/internal/account/models"
	"boxoffice/internal/audit"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/requestcontext"
)

// IdentityToggler is the slice of the identity directory approval needs.
type IdentityToggler interface {
	SetEnabled(ctx context.Context, accountID id.AccountID, enabled bool) error
}

const maxRejectionReasonLength = 500

// ApprovalService moves PENDING accounts to APPROVED or REJECTED.
type ApprovalService struct {
	accounts  *Accounts
	directory IdentityToggler
	audit     AuditRecorder
	logger    *slog.Logger
}

// NewApprovalService shares the logger and audit recorder of accounts.
func NewApprovalService(accounts *Accounts, directory IdentityToggler) *ApprovalService {
	return &ApprovalService{
		accounts:  accounts,
		directory: directory,
		audit:     accounts.audit,
		logger:    accounts.logger,
	}
}

// Approve marks a PENDING account APPROVED.
func (s *ApprovalService) Approve(ctx context.Context, adminID, accountID id.AccountID) (*models.Account, error) {
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := a.Approve(adminID, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.accounts.transition(ctx, a, models.ApprovalStatusPending); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account approved",
		"account_id", a.ID.String(),
		"admin_id", adminID.String(),
	)
	s.record(ctx, audit.Entry{
		Action:       audit.ActionAccountApproved,
		Actor:        adminID,
		Target:       &a.ID,
		ResourceType: "account",
		ResourceID:   a.ID.String(),
	})
	return a, nil
}

// Reject marks a PENDING account REJECTED and disables its identity. The
// identity toggle is best effort: the local status is what the gate enforces.
func (s *ApprovalService) Reject(ctx context.Context, adminID, accountID id.AccountID, reason string) (*models.Account, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxRejectionReasonLength {
		return nil, dErrors.Newf(dErrors.CodeValidation, "rejection reason must be at most %d characters", maxRejectionReasonLength)
	}

	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := a.Reject(reason, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.accounts.transition(ctx, a, models.ApprovalStatusPending); err != nil {
		return nil, err
	}

	if s.directory != nil {
		if err := s.directory.SetEnabled(ctx, a.ID, false); err != nil {
			s.logger.WarnContext(ctx, "failed to disable rejected identity",
				"account_id", a.ID.String(),
				"error", err,
			)
		}
	}

	s.logger.InfoContext(ctx, "account rejected",
		"account_id", a.ID.String(),
		"admin_id", adminID.String(),
	)
	s.record(ctx, audit.Entry{
		Action:       audit.ActionAccountRejected,
		Actor:        adminID,
		Target:       &a.ID,
		ResourceType: "account",
		ResourceID:   a.ID.String(),
		Details:      "reason=" + reason,
	})
	return a, nil
}

// List pages through accounts in status.
func (s *ApprovalService) List(ctx context.Context, status models.ApprovalStatus, page id.PageRequest) (id.Page[*models.Account], error) {
	if !status.IsValid() {
		return id.Page[*models.Account]{}, dErrors.New(dErrors.CodeInvalidInput, "invalid approval status")
	}
	result, err := s.accounts.store.FindByApprovalStatus(ctx, status, page)
	if err != nil {
		return result, translate(err, "", "failed to list accounts")
	}
	return result, nil
}

func (s *ApprovalService) record(ctx context.Context, e audit.Entry) {
	if s.audit != nil {
		s.audit.Record(ctx, e)
	}
}
