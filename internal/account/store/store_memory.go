// Package store persists accounts.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"boxoffice/internal/account/models"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/sentinel"
	"boxoffice/pkg/platform/tx"
)

// SystemEmail is the address of the seeded SYSTEM account.
const SystemEmail = "system@boxoffice.internal"

// InMemoryStore keeps accounts in maps. Mutations made inside a unit of work
// are journaled so a failed unit leaves no trace.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*models.Account
	byEmail  map[string]id.AccountID
}

// NewInMemory returns a store seeded with the SYSTEM account.
func NewInMemory() *InMemoryStore {
	s := &InMemoryStore{
		accounts: make(map[id.AccountID]*models.Account),
		byEmail:  make(map[string]id.AccountID),
	}
	system := models.NewApproved(id.SystemAccountID(), SystemEmail, "SYSTEM", time.Unix(0, 0).UTC())
	s.accounts[system.ID] = system
	s.byEmail[system.Email] = system.ID
	return s
}

func (s *InMemoryStore) Get(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(a), nil
}

func (s *InMemoryStore) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accountID, ok := s.byEmail[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.accounts[accountID]), nil
}

func (s *InMemoryStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[email]
	return ok, nil
}

// Save inserts or updates a. Another account holding the same email yields
// sentinel.ErrAlreadyUsed.
func (s *InMemoryStore) Save(ctx context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byEmail[a.Email]; ok && owner != a.ID {
		return sentinel.ErrAlreadyUsed
	}

	prev, existed := s.accounts[a.ID]
	if existed && prev.Email != a.Email {
		delete(s.byEmail, prev.Email)
	}
	s.accounts[a.ID] = clone(a)
	s.byEmail[a.Email] = a.ID

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.byEmail, a.Email)
		if existed {
			s.accounts[prev.ID] = prev
			s.byEmail[prev.Email] = prev.ID
			return
		}
		delete(s.accounts, a.ID)
	})
	return nil
}

// Insert adds a new account. An existing id yields sentinel.ErrConflict and
// a taken email sentinel.ErrAlreadyUsed; neither touches the stored row.
func (s *InMemoryStore) Insert(ctx context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byEmail[a.Email]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.accounts[a.ID] = clone(a)
	s.byEmail[a.Email] = a.ID

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.accounts, a.ID)
		delete(s.byEmail, a.Email)
	})
	return nil
}

// TransitionStatus writes the approval fields of a only while the stored
// status is still from. Otherwise it returns sentinel.ErrInvalidState.
func (s *InMemoryStore) TransitionStatus(ctx context.Context, a *models.Account, from models.ApprovalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.accounts[a.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if prev.Status != from {
		return sentinel.ErrInvalidState
	}
	next := clone(prev)
	next.Status = a.Status
	next.ApprovedAt = a.ApprovedAt
	next.ApprovedBy = a.ApprovedBy
	next.RejectionReason = a.RejectionReason
	next.UpdatedAt = a.UpdatedAt
	s.accounts[a.ID] = next

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.accounts[prev.ID] = prev
	})
	return nil
}

// Delete removes an account. Missing accounts are not an error.
func (s *InMemoryStore) Delete(ctx context.Context, accountID id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.accounts[accountID]
	if !ok {
		return nil
	}
	delete(s.accounts, accountID)
	delete(s.byEmail, prev.Email)

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.accounts[prev.ID] = prev
		s.byEmail[prev.Email] = prev.ID
	})
	return nil
}

// FindByApprovalStatus returns accounts in status, oldest first.
func (s *InMemoryStore) FindByApprovalStatus(_ context.Context, status models.ApprovalStatus, page id.PageRequest) (id.Page[*models.Account], error) {
	page = page.Normalize()

	s.mu.RLock()
	matched := make([]*models.Account, 0)
	for _, a := range s.accounts {
		if a.Status == status {
			matched = append(matched, clone(a))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	result := id.Page[*models.Account]{Total: len(matched), Page: page.Page, Size: page.Size}
	start := min(page.Offset(), len(matched))
	end := min(start+page.Size, len(matched))
	result.Items = matched[start:end]
	return result, nil
}

func clone(a *models.Account) *models.Account {
	c := *a
	return &c
}
