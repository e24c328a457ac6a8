package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "boxoffice/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so an AccountID can never be passed
// where an EventID is expected.
type (
	// AccountID equals the subject id issued by the identity directory.
	AccountID    uuid.UUID
	EventID      uuid.UUID
	InviteCodeID uuid.UUID
)

var systemAccountID = AccountID(uuid.MustParse("00000000-0000-0000-0000-000000000001"))

// SystemAccountID is the well-known id the SYSTEM account is seeded with.
// Components take the loaded SYSTEM actor as a dependency; this is only the
// lookup key.
func SystemAccountID() AccountID { return systemAccountID }

// maxIDLength rejects oversized input before it reaches uuid.Parse.
const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return u, nil
}

func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID("account id", s)
	return AccountID(u), err
}

func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID("event id", s)
	return EventID(u), err
}

func ParseInviteCodeID(s string) (InviteCodeID, error) {
	u, err := parseUUID("invite code id", s)
	return InviteCodeID(u), err
}

func NewInviteCodeID() InviteCodeID { return InviteCodeID(uuid.New()) }

func (id AccountID) String() string    { return uuid.UUID(id).String() }
func (id EventID) String() string      { return uuid.UUID(id).String() }
func (id InviteCodeID) String() string { return uuid.UUID(id).String() }

func (id AccountID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id InviteCodeID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// IsSystem reports whether id is the SYSTEM account.
func (id AccountID) IsSystem() bool { return id == systemAccountID }

func (id AccountID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id InviteCodeID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// UnmarshalText accepts anything MarshalText writes, the nil UUID included.
// Parse* is the stricter path for user input.
func (id *AccountID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID("account id", b)
	if err != nil {
		return err
	}
	*id = AccountID(u)
	return nil
}

func (id *EventID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID("event id", b)
	if err != nil {
		return err
	}
	*id = EventID(u)
	return nil
}

func (id *InviteCodeID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID("invite code id", b)
	if err != nil {
		return err
	}
	*id = InviteCodeID(u)
	return nil
}

func unmarshalUUID(kind string, b []byte) (uuid.UUID, error) {
	if len(b) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return u, nil
}
