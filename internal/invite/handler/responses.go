package handler

import (
	"time"

	"boxoffice/internal/identity"
	"boxoffice/internal/invite/models"
	id "boxoffice/pkg/domain"
)

type InviteResponse struct {
	ID            id.InviteCodeID `json:"id"`
	Code          string          `json:"code"`
	Role          identity.Role   `json:"role"`
	EventID       *id.EventID     `json:"event_id,omitempty"`
	Status        models.Status   `json:"status"`
	CreatedBy     id.AccountID    `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	RedeemedBy    *id.AccountID   `json:"redeemed_by,omitempty"`
	RedeemedAt    *time.Time      `json:"redeemed_at,omitempty"`
	RevokedAt     *time.Time      `json:"revoked_at,omitempty"`
	RevokedReason string          `json:"revoked_reason,omitempty"`
}

func toInviteResponse(c *models.InviteCode) InviteResponse {
	return InviteResponse{
		ID:            c.ID,
		Code:          c.Code,
		Role:          c.Role,
		EventID:       c.TargetEventID,
		Status:        c.Status,
		CreatedBy:     c.CreatedBy,
		CreatedAt:     c.CreatedAt,
		ExpiresAt:     c.ExpiresAt,
		RedeemedBy:    c.RedeemedBy,
		RedeemedAt:    c.RedeemedAt,
		RevokedAt:     c.RevokedAt,
		RevokedReason: c.RevokedReason,
	}
}

type RedeemResponse struct {
	Role      identity.Role   `json:"role"`
	EventID   *id.EventID     `json:"event_id,omitempty"`
	EventName string          `json:"event_name,omitempty"`
	Roles     []identity.Role `json:"roles"`
}

func toRedeemResponse(res *models.RedemptionResult) RedeemResponse {
	roles := res.Roles
	if roles == nil {
		roles = []identity.Role{}
	}
	return RedeemResponse{
		Role:      res.Role,
		EventID:   res.EventID,
		EventName: res.EventName,
		Roles:     roles,
	}
}

type ListResponse struct {
	Items []InviteResponse `json:"items"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Size  int              `json:"size"`
}
