package domainerrors

import "errors"

// InviteReason distinguishes why an invite code cannot be used. It only
// shapes the message; callers branch on CodeInvalidInviteCode.
type InviteReason string

const (
	InviteAlreadyRedeemed InviteReason = "already_redeemed"
	InviteExpired         InviteReason = "expired"
	InviteRevoked         InviteReason = "revoked"
	InviteNotPending      InviteReason = "not_pending"
)

// InviteError is a CodeInvalidInviteCode error tagged with a reason.
type InviteError struct {
	base   *Error
	Reason InviteReason
}

func (e *InviteError) Error() string {
	return e.base.Error()
}

func (e *InviteError) Unwrap() error {
	return e.base
}

// NewInvite builds an InvalidInviteCode error for reason.
func NewInvite(reason InviteReason, msg string) error {
	return &InviteError{
		base:   &Error{Code: CodeInvalidInviteCode, Message: msg},
		Reason: reason,
	}
}

// InviteReasonOf extracts the reason from an InvalidInviteCode error.
func InviteReasonOf(err error) (InviteReason, bool) {
	var ie *InviteError
	if errors.As(err, &ie) {
		return ie.Reason, true
	}
	return "", false
}
