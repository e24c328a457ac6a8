package models

import (
	"strings"
	"time"

	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
)

// Event is the minimal event record the authorization core needs: who owns it.
type Event struct {
	ID          id.EventID
	Name        string
	OrganizerID id.AccountID
	StartsAt    *time.Time
	CreatedAt   time.Time
}

const maxEventNameLength = 200

func NewEvent(eventID id.EventID, name string, organizer id.AccountID, startsAt *time.Time, now time.Time) (*Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "event name is required")
	}
	if len(name) > maxEventNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "event name is too long")
	}
	if organizer.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "event organizer is required")
	}
	return &Event{
		ID:          eventID,
		Name:        name,
		OrganizerID: organizer,
		StartsAt:    startsAt,
		CreatedAt:   now,
	}, nil
}

// IsOrganizedBy reports whether accountID owns the event.
func (e *Event) IsOrganizedBy(accountID id.AccountID) bool {
	return !accountID.IsNil() && e.OrganizerID == accountID
}

// StaffGrant is the only source of truth for staff-level access to an event.
type StaffGrant struct {
	EventID   id.EventID
	AccountID id.AccountID
	GrantedAt time.Time
}
