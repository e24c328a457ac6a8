// Package store persists events and their staff grants.
package store

import (
	"context"
	"sort"
	"sync"

	"boxoffice/internal/event/models"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/sentinel"
	"boxoffice/pkg/platform/tx"
)

type staffKey struct {
	event   id.EventID
	account id.AccountID
}

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.EventID]*models.Event
	staff  map[staffKey]models.StaffGrant
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		events: make(map[id.EventID]*models.Event),
		staff:  make(map[staffKey]models.StaffGrant),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	c := *e
	s.events[e.ID] = &c
	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.events, e.ID)
	})
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, eventID id.EventID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *e
	return &c, nil
}

// Grant records a staff grant. An existing grant is left untouched and
// reported as not created.
func (s *InMemoryStore) Grant(ctx context.Context, g models.StaffGrant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[g.EventID]; !ok {
		return false, sentinel.ErrNotFound
	}
	key := staffKey{event: g.EventID, account: g.AccountID}
	if _, ok := s.staff[key]; ok {
		return false, nil
	}
	s.staff[key] = g
	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.staff, key)
	})
	return true, nil
}

func (s *InMemoryStore) RevokeStaff(ctx context.Context, eventID id.EventID, accountID id.AccountID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := staffKey{event: eventID, account: accountID}
	prev, ok := s.staff[key]
	if !ok {
		return false, nil
	}
	delete(s.staff, key)
	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.staff[key] = prev
	})
	return true, nil
}

func (s *InMemoryStore) IsStaff(_ context.Context, eventID id.EventID, accountID id.AccountID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.staff[staffKey{event: eventID, account: accountID}]
	return ok, nil
}

// ListStaff returns grants for eventID, oldest first.
func (s *InMemoryStore) ListStaff(_ context.Context, eventID id.EventID) ([]models.StaffGrant, error) {
	s.mu.RLock()
	out := make([]models.StaffGrant, 0)
	for k, g := range s.staff {
		if k.event == eventID {
			out = append(out, g)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].GrantedAt.Equal(out[j].GrantedAt) {
			return out[i].AccountID.String() < out[j].AccountID.String()
		}
		return out[i].GrantedAt.Before(out[j].GrantedAt)
	})
	return out, nil
}
