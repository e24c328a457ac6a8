// Package audit is the append-only, failure-isolated audit trail.
package audit

import (
	"time"

	id "boxoffice/pkg/domain"
)

// Action is the closed set of auditable actions.
type Action string

const (
	ActionAccountRegistered          Action = "ACCOUNT_REGISTERED"
	ActionRegistrationFailed         Action = "REGISTRATION_FAILED"
	ActionRegistrationRollbackFailed Action = "REGISTRATION_ROLLBACK_FAILED"
	ActionAccountProvisioned         Action = "ACCOUNT_PROVISIONED"
	ActionAccountApproved            Action = "ACCOUNT_APPROVED"
	ActionAccountRejected            Action = "ACCOUNT_REJECTED"
	ActionApprovalGateViolation      Action = "APPROVAL_GATE_VIOLATION"
	ActionInviteCreated              Action = "INVITE_CREATED"
	ActionInviteRedeemed             Action = "INVITE_REDEEMED"
	ActionFailedInviteRedemption     Action = "FAILED_INVITE_REDEMPTION"
	ActionInviteRevoked              Action = "INVITE_REVOKED"
	ActionInvitesExpired             Action = "INVITES_EXPIRED"
	ActionAdminRoleGranted           Action = "ADMIN_ROLE_GRANTED"
	ActionStaffAccessGranted         Action = "STAFF_ACCESS_GRANTED"
	ActionAccessDenied               Action = "ACCESS_DENIED"
)

// Severity levels for SIEM routing.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var severities = map[Action]Severity{
	ActionAccountRegistered:          SeverityInfo,
	ActionRegistrationFailed:         SeverityWarning,
	ActionRegistrationRollbackFailed: SeverityCritical,
	ActionAccountProvisioned:         SeverityInfo,
	ActionAccountApproved:            SeverityInfo,
	ActionAccountRejected:            SeverityWarning,
	ActionApprovalGateViolation:      SeverityWarning,
	ActionInviteCreated:              SeverityInfo,
	ActionInviteRedeemed:             SeverityInfo,
	ActionFailedInviteRedemption:     SeverityWarning,
	ActionInviteRevoked:              SeverityInfo,
	ActionInvitesExpired:             SeverityInfo,
	ActionAdminRoleGranted:           SeverityCritical,
	ActionStaffAccessGranted:         SeverityInfo,
	ActionAccessDenied:               SeverityWarning,
}

// Severity returns the severity for a, defaulting to warning for unknown
// actions so they are never silently filed as routine.
func (a Action) Severity() Severity {
	if s, ok := severities[a]; ok {
		return s
	}
	return SeverityWarning
}

func (a Action) IsValid() bool {
	_, ok := severities[a]
	return ok
}

// Entry is what callers emit. Unset fields are filled by the Sink.
type Entry struct {
	Action       Action
	Actor        id.AccountID
	Target       *id.AccountID
	ResourceType string
	ResourceID   string
	EventID      *id.EventID
	Details      string
}

// Record is a persisted entry. Never updated or deleted.
type Record struct {
	ID           string
	Action       Action
	Severity     Severity
	Actor        id.AccountID
	Target       *id.AccountID
	ResourceType string
	ResourceID   string
	EventID      *id.EventID
	Details      string
	ClientIP     string
	UserAgent    string
	RequestID    string
	CreatedAt    time.Time
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Actions []Action
	Actor   *id.AccountID
	Limit   int
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// NormalizedLimit clamps Limit into (0, maxListLimit].
func (f Filter) NormalizedLimit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	default:
		return f.Limit
	}
}
