package models

import (
	"time"

	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
)

// ApprovalStatus is the business-trust state of an account.
// The zero value is the legacy NULL status that predates approval.
type ApprovalStatus string

const (
	ApprovalStatusUnset    ApprovalStatus = ""
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

func (s ApprovalStatus) String() string {
	if s == ApprovalStatusUnset {
		return "NULL"
	}
	return string(s)
}

// IsValid reports whether s is one of the persisted states. Unset is not valid.
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	}
	return false
}

// ParseApprovalStatus parses a status filter from user input.
func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	st := ApprovalStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid approval status")
	}
	return st, nil
}

// Account is the local business-trust record for an identity.
//
// Invariants:
//   - ID equals the identity directory subject id
//   - Email is stored lower-cased and unique
//   - Status transitions only PENDING→APPROVED and PENDING→REJECTED
//   - RejectionReason is non-empty when Status is REJECTED
type Account struct {
	ID              id.AccountID
	Email           string
	DisplayName     string
	Status          ApprovalStatus
	ApprovedAt      *time.Time
	ApprovedBy      *id.AccountID
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewPending builds a freshly registered account awaiting approval.
func NewPending(accountID id.AccountID, email, displayName string, now time.Time) *Account {
	return &Account{
		ID:          accountID,
		Email:       email,
		DisplayName: displayName,
		Status:      ApprovalStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewApproved builds an account that is trusted from the start. Used for
// callers that predate the approval workflow.
func NewApproved(accountID id.AccountID, email, displayName string, now time.Time) *Account {
	a := NewPending(accountID, email, displayName, now)
	a.Status = ApprovalStatusApproved
	a.ApprovedAt = &now
	return a
}

func (a *Account) IsApproved() bool { return a.Status == ApprovalStatusApproved }
func (a *Account) IsPending() bool  { return a.Status == ApprovalStatusPending }
func (a *Account) IsRejected() bool { return a.Status == ApprovalStatusRejected }

// NeedsNormalization reports whether the account carries the legacy NULL status.
func (a *Account) NeedsNormalization() bool { return a.Status == ApprovalStatusUnset }

// Normalize upgrades a legacy NULL status to APPROVED. It reports whether
// anything changed.
func (a *Account) Normalize(now time.Time) bool {
	if !a.NeedsNormalization() {
		return false
	}
	a.Status = ApprovalStatusApproved
	if a.ApprovedAt == nil {
		a.ApprovedAt = &now
	}
	a.UpdatedAt = now
	return true
}

// Approve moves a PENDING account to APPROVED.
func (a *Account) Approve(approver id.AccountID, now time.Time) error {
	if !a.IsPending() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "account is %s, only PENDING accounts can be approved", a.Status)
	}
	a.Status = ApprovalStatusApproved
	a.ApprovedAt = &now
	a.ApprovedBy = &approver
	a.UpdatedAt = now
	return nil
}

// Reject moves a PENDING account to REJECTED. The reason is required.
func (a *Account) Reject(reason string, now time.Time) error {
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	if !a.IsPending() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "account is %s, only PENDING accounts can be rejected", a.Status)
	}
	a.Status = ApprovalStatusRejected
	a.RejectionReason = reason
	a.UpdatedAt = now
	return nil
}
