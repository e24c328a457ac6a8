package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxoffice/internal/event/models"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/sentinel"
	"boxoffice/pkg/platform/tx"
)

func newEvent(t *testing.T, s *InMemoryStore) *models.Event {
	t.Helper()
	e, err := models.NewEvent(id.EventID(uuid.New()), "Launch Party", id.AccountID(uuid.New()), nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), e))
	return e
}

func TestInMemoryStaffGrants(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	e := newEvent(t, s)
	staff := id.AccountID(uuid.New())

	t.Run("grant is idempotent", func(t *testing.T) {
		created, err := s.Grant(ctx, models.StaffGrant{EventID: e.ID, AccountID: staff, GrantedAt: time.Now()})
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.Grant(ctx, models.StaffGrant{EventID: e.ID, AccountID: staff, GrantedAt: time.Now()})
		require.NoError(t, err)
		assert.False(t, created)

		grants, err := s.ListStaff(ctx, e.ID)
		require.NoError(t, err)
		assert.Len(t, grants, 1)
	})

	t.Run("grant on missing event", func(t *testing.T) {
		_, err := s.Grant(ctx, models.StaffGrant{EventID: id.EventID(uuid.New()), AccountID: staff})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("revoke", func(t *testing.T) {
		removed, err := s.RevokeStaff(ctx, e.ID, staff)
		require.NoError(t, err)
		assert.True(t, removed)

		ok, err := s.IsStaff(ctx, e.ID, staff)
		require.NoError(t, err)
		assert.False(t, ok)

		removed, err = s.RevokeStaff(ctx, e.ID, staff)
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

func TestInMemoryGrantUndoneOnRollback(t *testing.T) {
	s := NewInMemory()
	e := newEvent(t, s)
	staff := id.AccountID(uuid.New())

	err := tx.NewMemoryRunner().RunInTx(context.Background(), func(ctx context.Context) error {
		if _, err := s.Grant(ctx, models.StaffGrant{EventID: e.ID, AccountID: staff, GrantedAt: time.Now()}); err != nil {
			return err
		}
		return errors.New("directory down")
	})
	require.Error(t, err)

	ok, err := s.IsStaff(context.Background(), e.ID, staff)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewEventValidates(t *testing.T) {
	_, err := models.NewEvent(id.EventID(uuid.New()), "  ", id.AccountID(uuid.New()), nil, time.Now())
	assert.Error(t, err)

	_, err = models.NewEvent(id.EventID(uuid.New()), "Gala", id.AccountID{}, nil, time.Now())
	assert.Error(t, err)
}
