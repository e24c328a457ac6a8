// Package store persists invite codes. Every state change is a
// compare-and-set on status so concurrent redeemers, revokers and the sweep
// cannot both win.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"boxoffice/internal/invite/models"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/sentinel"
	"boxoffice/pkg/platform/tx"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	codes  map[id.InviteCodeID]*models.InviteCode
	byCode map[string]id.InviteCodeID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		codes:  make(map[id.InviteCodeID]*models.InviteCode),
		byCode: make(map[string]id.InviteCodeID),
	}
}

func clone(c *models.InviteCode) *models.InviteCode {
	out := *c
	if c.TargetEventID != nil {
		e := *c.TargetEventID
		out.TargetEventID = &e
	}
	if c.RedeemedBy != nil {
		a := *c.RedeemedBy
		out.RedeemedBy = &a
	}
	if c.RedeemedAt != nil {
		t := *c.RedeemedAt
		out.RedeemedAt = &t
	}
	if c.RevokedAt != nil {
		t := *c.RevokedAt
		out.RevokedAt = &t
	}
	return &out
}

func (s *InMemoryStore) Create(ctx context.Context, c *models.InviteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[c.Code]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.codes[c.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.codes[c.ID] = clone(c)
	s.byCode[c.Code] = c.ID
	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.codes, c.ID)
		delete(s.byCode, c.Code)
	})
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, codeID id.InviteCodeID) (*models.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.codes[codeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(c), nil
}

func (s *InMemoryStore) GetByCode(_ context.Context, code string) (*models.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codeID, ok := s.byCode[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.codes[codeID]), nil
}

// transition applies mutate to a PENDING code under the write lock. match
// decides whether the current row is eligible; a miss is ErrInvalidState.
func (s *InMemoryStore) transition(ctx context.Context, codeID id.InviteCodeID, match func(*models.InviteCode) bool, mutate func(*models.InviteCode)) (*models.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[codeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if c.Status != models.StatusPending || !match(c) {
		return nil, sentinel.ErrInvalidState
	}
	prev := clone(c)
	mutate(c)
	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.codes[codeID] = prev
	})
	return clone(c), nil
}

// ClaimPending marks a PENDING, unexpired code REDEEMED by redeemer.
func (s *InMemoryStore) ClaimPending(ctx context.Context, codeID id.InviteCodeID, redeemer id.AccountID, now time.Time) (*models.InviteCode, error) {
	return s.transition(ctx, codeID,
		func(c *models.InviteCode) bool { return !now.After(c.ExpiresAt) },
		func(c *models.InviteCode) {
			c.Status = models.StatusRedeemed
			r, at := redeemer, now
			c.RedeemedBy = &r
			c.RedeemedAt = &at
		})
}

// MarkExpired flips one lapsed PENDING code. It reports false when the code
// was not PENDING or has not lapsed.
func (s *InMemoryStore) MarkExpired(ctx context.Context, codeID id.InviteCodeID, now time.Time) (bool, error) {
	_, err := s.transition(ctx, codeID,
		func(c *models.InviteCode) bool { return now.After(c.ExpiresAt) },
		func(c *models.InviteCode) { c.Status = models.StatusExpired })
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sentinel.ErrInvalidState):
		return false, nil
	default:
		return false, err
	}
}

func (s *InMemoryStore) Revoke(ctx context.Context, codeID id.InviteCodeID, reason string, now time.Time) (*models.InviteCode, error) {
	return s.transition(ctx, codeID,
		func(*models.InviteCode) bool { return true },
		func(c *models.InviteCode) {
			c.Status = models.StatusRevoked
			at := now
			c.RevokedAt = &at
			c.RevokedReason = reason
		})
}

// MarkExpiredBefore flips every PENDING code whose expiry is before now.
func (s *InMemoryStore) MarkExpiredBefore(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var flipped []id.InviteCodeID
	for codeID, c := range s.codes {
		if c.IsExpiredAt(now) {
			c.Status = models.StatusExpired
			flipped = append(flipped, codeID)
		}
	}
	if len(flipped) > 0 {
		tx.RecordUndo(ctx, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, codeID := range flipped {
				s.codes[codeID].Status = models.StatusPending
			}
		})
	}
	return len(flipped), nil
}

// ListByCreator pages through codes issued by creator, newest first.
func (s *InMemoryStore) ListByCreator(_ context.Context, creator id.AccountID, page id.PageRequest) (id.Page[*models.InviteCode], error) {
	page = page.Normalize()
	s.mu.RLock()
	matched := make([]*models.InviteCode, 0)
	for _, c := range s.codes {
		if c.CreatedBy == creator {
			matched = append(matched, clone(c))
		}
	}
	s.mu.RUnlock()
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	result := id.Page[*models.InviteCode]{Items: []*models.InviteCode{}, Total: len(matched), Page: page.Page, Size: page.Size}
	start := page.Offset()
	if start >= len(matched) {
		return result, nil
	}
	end := min(start+page.Size, len(matched))
	result.Items = matched[start:end]
	return result, nil
}
