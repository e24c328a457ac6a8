package registration

import (
	"strings"

	accountmodels "boxoffice/internal/account/models"
	"boxoffice/internal/identity"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/email"
)

const (
	minPasswordLength    = 8
	maxPasswordLength    = 128
	maxDisplayNameLength = 120
)

type Request struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	InviteCode  string `json:"invite_code,omitempty"`
}

// Normalize trims fields and lower-cases the e-mail.
func (r *Request) Normalize() {
	r.Email = email.Normalize(r.Email)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.InviteCode = strings.TrimSpace(r.InviteCode)
	if r.DisplayName == "" {
		r.DisplayName = email.DisplayName(r.Email)
	}
}

func (r *Request) Validate() error {
	if err := email.Validate(r.Email); err != nil {
		return err
	}
	if len(r.Password) < minPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	if len(r.Password) > maxPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at most %d characters", maxPasswordLength)
	}
	if len(r.DisplayName) > maxDisplayNameLength {
		return dErrors.Newf(dErrors.CodeValidation, "display name must be at most %d characters", maxDisplayNameLength)
	}
	return nil
}

// Result describes a registered account. Status is always PENDING.
type Result struct {
	AccountID id.AccountID                 `json:"account_id"`
	Email     string                       `json:"email"`
	Status    accountmodels.ApprovalStatus `json:"approval_status"`
	Role      identity.Role                `json:"role"`
	EventID   *id.EventID                  `json:"event_id,omitempty"`
	EventName string                       `json:"event_name,omitempty"`
}

// failure reasons recorded on REGISTRATION_FAILED
const (
	reasonInvalidRequest  = "invalid_request"
	reasonEmailInUse      = "email_in_use"
	reasonInvalidInvite   = "invalid_invite"
	reasonDirectoryLookup = "directory_lookup_failed"
	reasonIdentityCreate  = "identity_create_failed"
	reasonRoleAssign      = "role_assign_failed"
	reasonAccountSave     = "account_save_failed"
	reasonStaffGrant      = "staff_grant_failed"
	reasonInviteClaimLost = "invite_claim_lost"
	reasonAccountLookup   = "account_lookup_failed"
)
