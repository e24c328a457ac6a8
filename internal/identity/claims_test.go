package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolesFromClaims(t *testing.T) {
	tests := []struct {
		name     string
		claims   map[string]any
		clientID string
		want     []string
	}{
		{
			name:   "no role claims",
			claims: map[string]any{"sub": "x"},
			want:   []string{},
		},
		{
			name: "realm roles with prefix and mixed case",
			claims: map[string]any{
				"realm_access": map[string]any{"roles": []any{"ROLE_organizer", "offline_access", "Staff"}},
			},
			want: []string{"ORGANIZER", "STAFF"},
		},
		{
			name: "client roles only for the configured client",
			claims: map[string]any{
				"resource_access": map[string]any{
					"boxoffice": map[string]any{"roles": []any{"admin"}},
					"other":     map[string]any{"roles": []any{"attendee"}},
				},
			},
			clientID: "boxoffice",
			want:     []string{"ADMIN"},
		},
		{
			name: "sources merge and dedupe",
			claims: map[string]any{
				"realm_access": map[string]any{"roles": []any{"STAFF"}},
				"roles":        []any{"role_staff", "ATTENDEE", 42},
			},
			want: []string{"ATTENDEE", "STAFF"},
		},
		{
			name: "malformed shapes are ignored",
			claims: map[string]any{
				"realm_access":    "not-a-map",
				"resource_access": map[string]any{"boxoffice": []any{"admin"}},
			},
			clientID: "boxoffice",
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RolesFromClaims(tt.claims, tt.clientID))
		})
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" role_Staff ")
	assert.NoError(t, err)
	assert.Equal(t, RoleStaff, r)
	assert.True(t, r.IsEventScoped())

	_, err = ParseRole("superuser")
	assert.Error(t, err)

	assert.True(t, RoleAdmin.IsHighestPrivilege())
	assert.True(t, RoleOrganizer.Outranks(RoleStaff))
	assert.False(t, RoleAttendee.Outranks(RoleAttendee))
}

func TestRolesOf(t *testing.T) {
	assert.Equal(t, []Role{RoleAdmin, RoleStaff}, RolesOf([]string{"ADMIN", "bogus", "staff"}))
	assert.Empty(t, RolesOf(nil))
}
