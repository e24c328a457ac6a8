package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "boxoffice/pkg/domain"
)

func TestPrincipal(t *testing.T) {
	ctx := context.Background()

	_, ok := Principal(ctx)
	assert.False(t, ok)
	assert.True(t, AccountID(ctx).IsNil())

	subject := id.AccountID(uuid.New())
	ctx = WithPrincipal(ctx, VerifiedPrincipal{Subject: subject, Roles: []string{"ORGANIZER"}})

	p, ok := Principal(ctx)
	assert.True(t, ok)
	assert.Equal(t, subject, AccountID(ctx))
	assert.True(t, p.HasRole("ORGANIZER"))
	assert.False(t, p.HasRole("ADMIN"))
}

func TestNowFallsBackToWallClock(t *testing.T) {
	before := time.Now()
	got := Now(context.Background())
	assert.False(t, got.Before(before))

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
}

func TestClientMetadata(t *testing.T) {
	ctx := WithClientMetadata(context.Background(), "10.0.0.1", "agent/1.0")
	ctx = WithRequestID(ctx, "req-1")

	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "agent/1.0", UserAgent(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
}
