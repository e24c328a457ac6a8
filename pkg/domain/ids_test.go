package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "boxoffice/pkg/domain-errors"
)

// TestParseID_Invariants covers the trust-boundary rule that ids must be
// valid, non-empty, non-nil UUIDs.
func TestParseID_Invariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE accounts;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Empty string", "", true},
		{"Whitespace only", "   ", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errAccount := ParseAccountID(tt.input)
			_, errEvent := ParseEventID(tt.input)
			_, errInvite := ParseInviteCodeID(tt.input)
			if tt.wantErr {
				for _, err := range []error{errAccount, errEvent, errInvite} {
					require.Error(t, err)
					assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				}
				return
			}
			require.NoError(t, errAccount)
			require.NoError(t, errEvent)
			require.NoError(t, errInvite)
		})
	}
}

func TestSystemAccountID(t *testing.T) {
	assert.True(t, SystemAccountID().IsSystem())
	assert.False(t, AccountID(uuid.New()).IsSystem())
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", SystemAccountID().String())
}

func TestIDs_JSONRoundTrip(t *testing.T) {
	type payload struct {
		Account AccountID `json:"account_id"`
		Event   EventID   `json:"event_id"`
	}
	in := payload{Account: AccountID(uuid.New()), Event: EventID(uuid.New())}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), in.Account.String())

	var out payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)

	err = json.Unmarshal([]byte(`{"account_id":"nope"}`), &out)
	require.Error(t, err)
}

func TestIDs_NilRoundTrip(t *testing.T) {
	type payload struct {
		Account AccountID    `json:"account_id"`
		Invite  InviteCodeID `json:"invite_id"`
	}

	raw, err := json.Marshal(payload{})
	require.NoError(t, err)

	var out payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, out.Account.IsNil())
	assert.True(t, out.Invite.IsNil())

	_, err = ParseAccountID(uuid.Nil.String())
	require.Error(t, err, "user input still rejects the nil id")
}

func TestPageRequest_Normalize(t *testing.T) {
	assert.Equal(t, PageRequest{Page: 0, Size: DefaultPageSize}, PageRequest{Page: -3}.Normalize())
	assert.Equal(t, PageRequest{Page: 2, Size: MaxPageSize}, PageRequest{Page: 2, Size: 5000}.Normalize())
	assert.Equal(t, 40, PageRequest{Page: 2, Size: 20}.Offset())
}
