package models

import (
	"fmt"
	"strings"
	"time"

	"boxoffice/internal/identity"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
)

// Status is monotonic: PENDING moves to exactly one terminal state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusRedeemed Status = "REDEEMED"
	StatusExpired  Status = "EXPIRED"
	StatusRevoked  Status = "REVOKED"
)

func (s Status) IsTerminal() bool { return s != StatusPending }

const (
	DefaultTTL = 72 * time.Hour
	MinTTL     = time.Hour
	MaxTTL     = 720 * time.Hour

	maxRevokeReasonLength = 500
)

// TTLFromHours maps a requested lifetime onto a duration. Zero means
// DefaultTTL; anything outside [1, 720] hours is rejected.
func TTLFromHours(hours int) (time.Duration, error) {
	if hours == 0 {
		return DefaultTTL, nil
	}
	ttl := time.Duration(hours) * time.Hour
	if ttl < MinTTL || ttl > MaxTTL {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "ttl must be between %d and %d hours", int(MinTTL.Hours()), int(MaxTTL.Hours()))
	}
	return ttl, nil
}

// InviteCode is a single-use, expiring grant of one role.
//
// Invariants:
//   - TargetEventID is set iff Role is event-scoped
//   - Status only leaves PENDING, never returns to it
//   - RedeemedBy/RedeemedAt are set iff Status is REDEEMED
type InviteCode struct {
	ID            id.InviteCodeID
	Code          string
	Role          identity.Role
	TargetEventID *id.EventID
	Status        Status
	CreatedBy     id.AccountID
	CreatedAt     time.Time
	ExpiresAt     time.Time
	RedeemedBy    *id.AccountID
	RedeemedAt    *time.Time
	RevokedAt     *time.Time
	RevokedReason string
}

// New builds a PENDING invite after checking the role/event combination.
func New(code string, role identity.Role, eventID *id.EventID, creator id.AccountID, ttl time.Duration, now time.Time) (*InviteCode, error) {
	if err := CheckScope(role, eventID); err != nil {
		return nil, err
	}
	return &InviteCode{
		ID:            id.NewInviteCodeID(),
		Code:          code,
		Role:          role,
		TargetEventID: eventID,
		Status:        StatusPending,
		CreatedBy:     creator,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}, nil
}

// CheckScope rejects structurally invalid role/event pairs.
func CheckScope(role identity.Role, eventID *id.EventID) error {
	if !role.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", role)
	}
	hasEvent := eventID != nil && !eventID.IsNil()
	if role.IsEventScoped() && !hasEvent {
		return dErrors.Newf(dErrors.CodeInvalidInput, "event id is required for %s invites", role)
	}
	if !role.IsEventScoped() && hasEvent {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s invites cannot target an event", role)
	}
	return nil
}

// IsExpiredAt reports whether a PENDING code has outlived ExpiresAt. The
// instant of expiry itself is still valid.
func (c *InviteCode) IsExpiredAt(now time.Time) bool {
	return c.Status == StatusPending && now.After(c.ExpiresAt)
}

// ApplyExpiry flips a lapsed PENDING code to EXPIRED in memory.
func (c *InviteCode) ApplyExpiry(now time.Time) bool {
	if !c.IsExpiredAt(now) {
		return false
	}
	c.Status = StatusExpired
	return true
}

// Usable returns nil for a PENDING code and a reasoned InvalidInviteCode
// error otherwise.
func (c *InviteCode) Usable() error {
	switch c.Status {
	case StatusPending:
		return nil
	case StatusRedeemed:
		msg := "invite code has already been redeemed"
		if c.RedeemedAt != nil {
			msg = fmt.Sprintf("invite code was already redeemed at %s", c.RedeemedAt.UTC().Format(time.RFC3339))
		}
		if c.RedeemedBy != nil {
			msg += " by " + c.RedeemedBy.String()
		}
		return dErrors.NewInvite(dErrors.InviteAlreadyRedeemed, msg)
	case StatusExpired:
		return dErrors.NewInvite(dErrors.InviteExpired,
			fmt.Sprintf("invite code expired at %s", c.ExpiresAt.UTC().Format(time.RFC3339)))
	case StatusRevoked:
		msg := "invite code was revoked"
		if c.RevokedReason != "" {
			msg += ": " + c.RevokedReason
		}
		return dErrors.NewInvite(dErrors.InviteRevoked, msg)
	default:
		return dErrors.NewInvite(dErrors.InviteNotPending, fmt.Sprintf("invite code is %s", c.Status))
	}
}

// NormalizeRevokeReason trims and bounds a revocation reason.
func NormalizeRevokeReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxRevokeReasonLength {
		return "", dErrors.Newf(dErrors.CodeValidation, "reason must be at most %d characters", maxRevokeReasonLength)
	}
	return reason, nil
}

// RedemptionResult is what a successful redemption reports back.
type RedemptionResult struct {
	Role      identity.Role
	EventID   *id.EventID
	EventName string
	Roles     []identity.Role
}
