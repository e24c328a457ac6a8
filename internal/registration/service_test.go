package registration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	accountmodels "boxoffice/internal/account/models"
	accountservice "boxoffice/internal/account/service"
	accountstore "boxoffice/internal/account/store"
	"boxoffice/internal/audit"
	auditmemory "boxoffice/internal/audit/store/memory"
	eventmodels "boxoffice/internal/event/models"
	eventstore "boxoffice/internal/event/store"
	"boxoffice/internal/identity"
	identitymemory "boxoffice/internal/identity/memory"
	identitymocks "boxoffice/internal/identity/mocks"
	invitemodels "boxoffice/internal/invite/models"
	inviteservice "boxoffice/internal/invite/service"
	invitestore "boxoffice/internal/invite/store"
	"boxoffice/internal/platform/logger"
	"boxoffice/internal/registration"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/tx"
	"boxoffice/pkg/requestcontext"
)

type failingAccounts struct {
	*accountservice.Accounts
	createErr    error
	beforeCreate func(a *accountmodels.Account)
}

func (f *failingAccounts) Create(ctx context.Context, a *accountmodels.Account) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.beforeCreate != nil {
		f.beforeCreate(a)
	}
	return f.Accounts.Create(ctx, a)
}

// racingInvites lets a rival redeem the code between validation and claim.
type racingInvites struct {
	*inviteservice.Service
	rival    id.AccountID
	claimErr error
}

func (r *racingInvites) Validate(ctx context.Context, raw string) (*invitemodels.InviteCode, error) {
	c, err := r.Service.Validate(ctx, raw)
	if err == nil && !r.rival.IsNil() {
		if claimErr := r.Service.ClaimForAccount(ctx, c, r.rival); claimErr != nil {
			return nil, claimErr
		}
	}
	return c, err
}

func (r *racingInvites) ClaimForAccount(ctx context.Context, c *invitemodels.InviteCode, accountID id.AccountID) error {
	if r.claimErr != nil {
		return r.claimErr
	}
	return r.Service.ClaimForAccount(ctx, c, accountID)
}

type OrchestratorSuite struct {
	suite.Suite
	now       time.Time
	store     *accountstore.InMemoryStore
	accounts  *failingAccounts
	events    *eventstore.InMemoryStore
	invites   *inviteservice.Service
	racing    *racingInvites
	directory *identitymemory.Directory
	auditLog  *auditmemory.Store
	sink      *audit.Sink
	metrics   *registration.Metrics
	organizer id.AccountID
	event     *eventmodels.Event
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = accountstore.NewInMemory()
	s.accounts = &failingAccounts{Accounts: accountservice.NewAccounts(s.store, accountservice.WithLogger(logger.Discard()))}
	s.events = eventstore.NewInMemory()
	s.directory = identitymemory.New(identitymemory.WithBcryptCost(4))
	s.auditLog = auditmemory.New()
	s.sink = audit.NewSink(s.auditLog, audit.WithLogger(logger.Discard()))
	s.metrics = registration.NewMetrics(prometheus.NewRegistry())
	s.invites = inviteservice.New(invitestore.NewInMemory(), s.accounts.Accounts, s.events, s.directory, tx.NewMemoryRunner(),
		inviteservice.WithLogger(logger.Discard()),
		inviteservice.WithAuditRecorder(s.sink),
	)
	s.racing = &racingInvites{Service: s.invites}

	s.organizer = id.AccountID(uuid.New())
	s.Require().NoError(s.store.Save(context.Background(), accountmodels.NewApproved(s.organizer, "organizer@example.com", "Org", s.now)))
	ev, err := eventmodels.NewEvent(id.EventID(uuid.New()), "Opening Night", s.organizer, nil, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.events.Create(context.Background(), ev))
	s.event = ev
}

func (s *OrchestratorSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *OrchestratorSuite) orchestrator(directory identity.Directory, opts ...registration.Option) *registration.Orchestrator {
	opts = append([]registration.Option{
		registration.WithLogger(logger.Discard()),
		registration.WithAuditRecorder(s.sink),
		registration.WithMetrics(s.metrics),
	}, opts...)
	return registration.New(s.accounts, s.racing, s.events, directory, opts...)
}

func (s *OrchestratorSuite) staffInvite() *invitemodels.InviteCode {
	c, err := s.invites.Generate(s.ctx(), s.organizer, inviteservice.GenerateRequest{Role: identity.RoleStaff, EventID: &s.event.ID, TTLHours: 1})
	s.Require().NoError(err)
	return c
}

func (s *OrchestratorSuite) request(addr string) registration.Request {
	return registration.Request{Email: addr, Password: "correct horse battery", DisplayName: "Jane Doe"}
}

func (s *OrchestratorSuite) assertNothingLeft(addr string) {
	exists, err := s.accounts.ExistsByEmail(context.Background(), addr)
	s.Require().NoError(err)
	s.False(exists, "account row left behind")
	_, found, err := s.directory.FindIDByEmail(context.Background(), addr)
	s.Require().NoError(err)
	s.False(found, "directory identity left behind")
}

func (s *OrchestratorSuite) TestRegisterWithoutInvite() {
	result, err := s.orchestrator(s.directory).Register(s.ctx(), s.request(" Jane@Example.com "))
	s.Require().NoError(err)
	s.Equal("jane@example.com", result.Email)
	s.Equal(accountmodels.ApprovalStatusPending, result.Status)
	s.Equal(identity.RoleAttendee, result.Role)

	roles, err := s.directory.GetRoles(context.Background(), result.AccountID)
	s.Require().NoError(err)
	s.Equal([]identity.Role{identity.RoleAttendee}, roles)

	a, err := s.store.Get(context.Background(), result.AccountID)
	s.Require().NoError(err)
	s.True(a.IsPending())

	registered := s.auditLog.ByAction(audit.ActionAccountRegistered)
	s.Require().Len(registered, 1)
	s.Equal(result.AccountID, registered[0].Actor)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Outcomes.WithLabelValues("success")))
}

func (s *OrchestratorSuite) TestRegisterWithStaffInviteGrantsImmediately() {
	c := s.staffInvite()
	req := s.request("staff@example.com")
	req.InviteCode = c.Code

	result, err := s.orchestrator(s.directory).Register(s.ctx(), req)
	s.Require().NoError(err)
	s.Equal(identity.RoleStaff, result.Role)
	s.Equal("Opening Night", result.EventName)
	s.Equal(accountmodels.ApprovalStatusPending, result.Status)

	isStaff, err := s.events.IsStaff(context.Background(), s.event.ID, result.AccountID)
	s.Require().NoError(err)
	s.True(isStaff)

	stored, err := s.invites.Get(s.ctx(), c.ID)
	s.Require().NoError(err)
	s.Equal(invitemodels.StatusRedeemed, stored.Status)
	s.Equal(result.AccountID, *stored.RedeemedBy)

	s.Len(s.auditLog.ByAction(audit.ActionStaffAccessGranted), 1)
}

func (s *OrchestratorSuite) TestFailureBeforeAccountCreditsInjectedSystemActor() {
	system := id.AccountID(uuid.New())
	req := s.request("actor@example.com")
	req.InviteCode = "ZZZZ-ZZZZ-ZZZZ"

	_, err := s.orchestrator(s.directory, registration.WithSystemActor(system)).Register(s.ctx(), req)
	s.Require().Error(err)

	failed := s.auditLog.ByAction(audit.ActionRegistrationFailed)
	s.Require().Len(failed, 1)
	s.Equal(system, failed[0].Actor)
}

func (s *OrchestratorSuite) TestInvalidInviteLeavesNothingAndAllowsRetry() {
	req := s.request("retry@example.com")
	req.InviteCode = "ZZZZ-ZZZZ-ZZZZ"

	_, err := s.orchestrator(s.directory).Register(s.ctx(), req)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.assertNothingLeft("retry@example.com")
	s.Empty(s.directory.Identities())

	failed := s.auditLog.ByAction(audit.ActionRegistrationFailed)
	s.Require().Len(failed, 1)
	s.Equal(id.SystemAccountID(), failed[0].Actor)
	s.Contains(failed[0].Details, "reason=invalid_invite")

	req.InviteCode = ""
	_, err = s.orchestrator(s.directory).Register(s.ctx(), req)
	s.NoError(err)
}

func (s *OrchestratorSuite) TestExpiredInviteIsRejected() {
	c := s.staffInvite()
	req := s.request("late@example.com")
	req.InviteCode = c.Code

	_, err := s.orchestrator(s.directory).Register(requestcontext.WithTime(context.Background(), c.ExpiresAt.Add(time.Second)), req)
	reason, ok := dErrors.InviteReasonOf(err)
	s.Require().True(ok)
	s.Equal(dErrors.InviteExpired, reason)
	s.assertNothingLeft("late@example.com")
}

func (s *OrchestratorSuite) TestEmailAlreadyRegistered() {
	_, err := s.orchestrator(s.directory).Register(s.ctx(), s.request("organizer@example.com"))
	s.True(dErrors.HasCode(err, dErrors.CodeEmailInUse))
	s.Empty(s.directory.Identities())
}

func (s *OrchestratorSuite) TestInvalidRequest() {
	req := s.request("not-an-email")
	_, err := s.orchestrator(s.directory).Register(s.ctx(), req)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	req = s.request("short@example.com")
	req.Password = "abc"
	_, err = s.orchestrator(s.directory).Register(s.ctx(), req)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *OrchestratorSuite) TestReusesOrphanedIdentity() {
	orphan, err := s.directory.CreateIdentity(context.Background(), "orphan@example.com", "correct horse battery", "Orphan")
	s.Require().NoError(err)

	result, err := s.orchestrator(s.directory).Register(s.ctx(), s.request("orphan@example.com"))
	s.Require().NoError(err)
	s.Equal(orphan, result.AccountID)
	s.Len(s.directory.Identities(), 1)
}

func (s *OrchestratorSuite) TestAccountProvisionedMidRegistrationIsKept() {
	holder, err := s.directory.CreateIdentity(context.Background(), "holder@example.com", "correct horse battery", "Holder")
	s.Require().NoError(err)
	s.accounts.beforeCreate = func(a *accountmodels.Account) {
		s.Require().NoError(s.store.Insert(context.Background(), accountmodels.NewApproved(a.ID, a.Email, "Holder", s.now)))
	}

	_, err = s.orchestrator(s.directory).Register(s.ctx(), s.request("holder@example.com"))
	s.True(dErrors.HasCode(err, dErrors.CodeEmailInUse), "got %v", err)

	a, err := s.store.Get(context.Background(), holder)
	s.Require().NoError(err)
	s.True(a.IsApproved(), "provisioned row is not overwritten")
	_, found, err := s.directory.FindIDByEmail(context.Background(), "holder@example.com")
	s.Require().NoError(err)
	s.True(found, "reused identity is kept")
	s.Zero(testutil.ToFloat64(s.metrics.Rollbacks.WithLabelValues("delete_account", "ok")))
}

func (s *OrchestratorSuite) TestRoleAssignFailureDeletesCreatedIdentity() {
	ctrl := gomock.NewController(s.T())
	directory := identitymocks.NewMockDirectory(ctrl)
	created := id.AccountID(uuid.New())
	gomock.InOrder(
		directory.EXPECT().FindIDByEmail(gomock.Any(), "new@example.com").Return(id.AccountID{}, false, nil),
		directory.EXPECT().CreateIdentity(gomock.Any(), "new@example.com", gomock.Any(), "Jane Doe").Return(created, nil),
		directory.EXPECT().AssignRole(gomock.Any(), created, identity.RoleAttendee).Return(errors.New("realm role missing")),
		directory.EXPECT().DeleteIdentity(gomock.Any(), created).Return(nil),
	)

	_, err := s.orchestrator(directory).Register(s.ctx(), s.request("new@example.com"))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal("failed to assign role", dErrors.Message(err))

	exists, err := s.accounts.ExistsByEmail(context.Background(), "new@example.com")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *OrchestratorSuite) TestAccountSaveFailureRollsBackIdentity() {
	s.accounts.createErr = dErrors.New(dErrors.CodeUnavailable, "account store unavailable")

	_, err := s.orchestrator(s.directory).Register(s.ctx(), s.request("new@example.com"))
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.assertNothingLeft("new@example.com")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Rollbacks.WithLabelValues("delete_identity", "ok")))
}

func (s *OrchestratorSuite) TestReusedIdentityIsNeverDeleted() {
	s.accounts.createErr = errors.New("disk full")

	ctrl := gomock.NewController(s.T())
	directory := identitymocks.NewMockDirectory(ctrl)
	reused := id.AccountID(uuid.New())
	gomock.InOrder(
		directory.EXPECT().FindIDByEmail(gomock.Any(), "orphan@example.com").Return(reused, true, nil),
		directory.EXPECT().HasRole(gomock.Any(), reused, identity.RoleAttendee).Return(false, nil),
		directory.EXPECT().AssignRole(gomock.Any(), reused, identity.RoleAttendee).Return(nil),
		directory.EXPECT().RevokeRole(gomock.Any(), reused, identity.RoleAttendee).Return(nil),
	)

	_, err := s.orchestrator(directory).Register(s.ctx(), s.request("orphan@example.com"))
	s.Require().Error(err)
}

func (s *OrchestratorSuite) TestRollbackFailureKeepsOriginalError() {
	ctrl := gomock.NewController(s.T())
	directory := identitymocks.NewMockDirectory(ctrl)
	created := id.AccountID(uuid.New())
	directory.EXPECT().FindIDByEmail(gomock.Any(), gomock.Any()).Return(id.AccountID{}, false, nil)
	directory.EXPECT().CreateIdentity(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(created, nil)
	directory.EXPECT().AssignRole(gomock.Any(), created, identity.RoleAttendee).Return(errors.New("realm role missing"))
	directory.EXPECT().DeleteIdentity(gomock.Any(), created).Return(errors.New("directory timeout"))

	_, err := s.orchestrator(directory).Register(s.ctx(), s.request("new@example.com"))
	s.Equal("failed to assign role", dErrors.Message(err))

	rollback := s.auditLog.ByAction(audit.ActionRegistrationRollbackFailed)
	s.Require().Len(rollback, 1)
	s.Equal(audit.SeverityCritical, rollback[0].Severity)
	s.Equal(created, *rollback[0].Target)
	s.Contains(rollback[0].Details, "step=delete_identity")
}

func (s *OrchestratorSuite) TestLostInviteRaceRollsBackEverything() {
	c := s.staffInvite()
	s.racing.rival = id.AccountID(uuid.New())
	req := s.request("slow@example.com")
	req.InviteCode = c.Code

	_, err := s.orchestrator(s.directory).Register(s.ctx(), req)
	reason, ok := dErrors.InviteReasonOf(err)
	s.Require().True(ok)
	s.Equal(dErrors.InviteAlreadyRedeemed, reason)

	s.assertNothingLeft("slow@example.com")
	staff, err := s.events.ListStaff(context.Background(), s.event.ID)
	s.Require().NoError(err)
	s.Empty(staff)
}

func (s *OrchestratorSuite) TestInviteClaimFaultKeepsRegistration() {
	c := s.staffInvite()
	s.racing.claimErr = dErrors.New(dErrors.CodeUnavailable, "invite store unavailable")
	req := s.request("lucky@example.com")
	req.InviteCode = c.Code

	result, err := s.orchestrator(s.directory).Register(s.ctx(), req)
	s.Require().NoError(err)
	s.Equal(identity.RoleStaff, result.Role)

	stored, err := s.invites.Get(s.ctx(), c.ID)
	s.Require().NoError(err)
	s.Equal(invitemodels.StatusPending, stored.Status)
}
