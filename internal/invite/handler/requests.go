package handler

import (
	"strings"

	"boxoffice/internal/identity"
	"boxoffice/internal/invite/service"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
)

type RedeemRequest struct {
	Code string `json:"code"`
}

func (r *RedeemRequest) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return dErrors.New(dErrors.CodeValidation, "code is required")
	}
	return nil
}

type IssueRequest struct {
	Role     string `json:"role"`
	EventID  string `json:"event_id,omitempty"`
	TTLHours int    `json:"ttl_hours,omitempty"`
}

// ToGenerate parses the wire form. Scope and TTL rules are enforced by the
// invite service.
func (r *IssueRequest) ToGenerate() (service.GenerateRequest, error) {
	role, err := identity.ParseRole(r.Role)
	if err != nil {
		return service.GenerateRequest{}, err
	}
	out := service.GenerateRequest{Role: role, TTLHours: r.TTLHours}
	if strings.TrimSpace(r.EventID) != "" {
		eventID, err := id.ParseEventID(r.EventID)
		if err != nil {
			return service.GenerateRequest{}, err
		}
		out.EventID = &eventID
	}
	return out, nil
}

type RevokeRequest struct {
	Reason string `json:"reason"`
}
