package service

import (
	"context"
	"fmt"

	id "boxoffice/pkg/domain"
)

// SystemActor is the resolved SYSTEM account, loaded once at startup.
type SystemActor struct {
	id    id.AccountID
	email string
}

// LoadSystemActor fails when the SYSTEM account is missing or not approved.
func LoadSystemActor(ctx context.Context, store Store) (SystemActor, error) {
	a, err := store.Get(ctx, id.SystemAccountID())
	if err != nil {
		return SystemActor{}, fmt.Errorf("load SYSTEM account %s: %w", id.SystemAccountID(), err)
	}
	if !a.IsApproved() {
		return SystemActor{}, fmt.Errorf("SYSTEM account %s is %s, want APPROVED", a.ID, a.Status)
	}
	return SystemActor{id: a.ID, email: a.Email}, nil
}

func (s SystemActor) ID() id.AccountID { return s.id }
func (s SystemActor) Email() string    { return s.email }
