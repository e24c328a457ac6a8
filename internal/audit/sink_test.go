package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"boxoffice/internal/audit"
	"boxoffice/internal/audit/store/memory"
	"boxoffice/internal/platform/logger"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/requestcontext"
)

type recordingMirror struct {
	records []audit.Record
}

func (m *recordingMirror) Enqueue(rec audit.Record) {
	m.records = append(m.records, rec)
}

type SinkSuite struct {
	suite.Suite
	store   *memory.Store
	mirror  *recordingMirror
	metrics *audit.Metrics
	sink    *audit.Sink
	now     time.Time
}

func TestSinkSuite(t *testing.T) {
	suite.Run(t, new(SinkSuite))
}

func (s *SinkSuite) SetupTest() {
	s.store = memory.New()
	s.mirror = &recordingMirror{}
	s.metrics = audit.NewMetrics(prometheus.NewRegistry())
	s.sink = audit.NewSink(s.store,
		audit.WithLogger(logger.Discard()),
		audit.WithMirror(s.mirror),
		audit.WithMetrics(s.metrics),
	)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *SinkSuite) ctx() context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.7", "test-agent")
	return requestcontext.WithRequestID(ctx, "req-123")
}

func (s *SinkSuite) TestStampsRequestMetadata() {
	actor := id.AccountID(uuid.New())
	s.sink.Record(s.ctx(), audit.Entry{
		Action:       audit.ActionInviteCreated,
		Actor:        actor,
		ResourceType: "invite_code",
		ResourceID:   "abc",
	})

	recs := s.store.All()
	s.Require().Len(recs, 1)
	rec := recs[0]
	s.NotEmpty(rec.ID)
	s.Equal(actor, rec.Actor)
	s.Equal(audit.SeverityInfo, rec.Severity)
	s.Equal("10.0.0.7", rec.ClientIP)
	s.Equal("test-agent", rec.UserAgent)
	s.Equal("req-123", rec.RequestID)
	s.Equal(s.now, rec.CreatedAt)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Written.WithLabelValues(string(audit.ActionInviteCreated))))
	s.Len(s.mirror.records, 1)
}

func (s *SinkSuite) TestNilActorBecomesSystem() {
	s.sink.Record(s.ctx(), audit.Entry{Action: audit.ActionInvitesExpired, Details: "count=3"})

	recs := s.store.All()
	s.Require().Len(recs, 1)
	s.True(recs[0].Actor.IsSystem())
}

func (s *SinkSuite) TestNilActorUsesInjectedSystemActor() {
	system := id.AccountID(uuid.New())
	sink := audit.NewSink(s.store, audit.WithLogger(logger.Discard()), audit.WithSystemActor(system))

	sink.Record(s.ctx(), audit.Entry{Action: audit.ActionInvitesExpired})

	recs := s.store.All()
	s.Require().Len(recs, 1)
	s.Equal(system, recs[0].Actor)
}

func (s *SinkSuite) TestStoreFailureIsSwallowed() {
	s.store.FailWith(errors.New("disk full"))

	s.NotPanics(func() {
		s.sink.Record(s.ctx(), audit.Entry{Action: audit.ActionAdminRoleGranted})
	})

	s.Empty(s.store.All())
	s.Empty(s.mirror.records, "failed writes are not mirrored")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Failed.WithLabelValues(string(audit.ActionAdminRoleGranted))))
}

func (s *SinkSuite) TestCancelledCallerStillWrites() {
	ctx, cancel := context.WithCancel(s.ctx())
	cancel()

	s.sink.Record(ctx, audit.Entry{Action: audit.ActionAccessDenied})

	s.Len(s.store.ByAction(audit.ActionAccessDenied), 1)
}

func (s *SinkSuite) TestIDsSortByTime() {
	ctx := s.ctx()
	s.sink.Record(ctx, audit.Entry{Action: audit.ActionInviteCreated})
	s.sink.Record(requestcontext.WithTime(ctx, s.now.Add(time.Second)), audit.Entry{Action: audit.ActionInviteRedeemed})

	recs := s.store.All()
	s.Require().Len(recs, 2)
	s.Less(recs[0].ID, recs[1].ID)
}

func (s *SinkSuite) TestListFiltersByAction() {
	ctx := s.ctx()
	s.sink.Record(ctx, audit.Entry{Action: audit.ActionInviteCreated})
	s.sink.Record(ctx, audit.Entry{Action: audit.ActionAccessDenied})
	s.sink.Record(ctx, audit.Entry{Action: audit.ActionInviteCreated})

	recs, err := s.sink.List(ctx, audit.Filter{Actions: []audit.Action{audit.ActionInviteCreated}})
	s.Require().NoError(err)
	s.Len(recs, 2)
}

func TestSeverity(t *testing.T) {
	cases := map[audit.Action]audit.Severity{
		audit.ActionAdminRoleGranted:           audit.SeverityCritical,
		audit.ActionRegistrationRollbackFailed: audit.SeverityCritical,
		audit.ActionApprovalGateViolation:      audit.SeverityWarning,
		audit.ActionAccountRegistered:          audit.SeverityInfo,
		audit.Action("SOMETHING_NEW"):          audit.SeverityWarning,
	}
	for action, want := range cases {
		if got := action.Severity(); got != want {
			t.Errorf("%s: got %s, want %s", action, got, want)
		}
	}
}
