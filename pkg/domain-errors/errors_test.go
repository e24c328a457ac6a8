package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	t.Run("wrap keeps cause reachable", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeInternal, "failed to load account")

		require.Error(t, err)
		assert.True(t, HasCode(err, CodeInternal))
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "failed to load account: connection refused", err.Error())
	})

	t.Run("wrap of nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeNotFound, "event not found"))
		assert.Equal(t, CodeNotFound, CodeOf(err))
		assert.Equal(t, "event not found", Message(err))
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
		assert.Equal(t, "internal error", Message(errors.New("boom")))
	})
}

func TestInviteError(t *testing.T) {
	err := NewInvite(InviteExpired, "invite code expired")

	assert.True(t, HasCode(err, CodeInvalidInviteCode))
	assert.Equal(t, "invite code expired", err.Error())

	reason, ok := InviteReasonOf(fmt.Errorf("redeem: %w", err))
	require.True(t, ok)
	assert.Equal(t, InviteExpired, reason)

	_, ok = InviteReasonOf(New(CodeInvalidInviteCode, "no reason"))
	assert.False(t, ok)
}
