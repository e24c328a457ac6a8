package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"boxoffice/internal/account/models"
	"boxoffice/internal/account/service"
	"boxoffice/internal/account/service/mocks"
	"boxoffice/internal/account/store"
	"boxoffice/internal/audit"
	auditmemory "boxoffice/internal/audit/store/memory"
	identitymocks "boxoffice/internal/identity/mocks"
	"boxoffice/internal/platform/logger"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/sentinel"
	"boxoffice/pkg/requestcontext"
)

type AccountsSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *store.InMemoryStore
	auditLog  *auditmemory.Store
	accounts  *service.Accounts
	approvals *service.ApprovalService
	directory *identitymocks.MockDirectory
	ctx       context.Context
	now       time.Time
}

func TestAccountsSuite(t *testing.T) {
	suite.Run(t, new(AccountsSuite))
}

func (s *AccountsSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = store.NewInMemory()
	s.auditLog = auditmemory.New()
	sink := audit.NewSink(s.auditLog, audit.WithLogger(logger.Discard()))
	s.accounts = service.NewAccounts(s.store,
		service.WithLogger(logger.Discard()),
		service.WithAuditRecorder(sink),
	)
	s.directory = identitymocks.NewMockDirectory(s.ctrl)
	s.approvals = service.NewApprovalService(s.accounts, s.directory)
	s.now = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *AccountsSuite) pending(addr string) *models.Account {
	a := models.NewPending(id.AccountID(uuid.New()), addr, "P", s.now.Add(-time.Hour))
	s.Require().NoError(s.store.Save(context.Background(), a))
	return a
}

func (s *AccountsSuite) TestGetNormalizesLegacyStatus() {
	legacy := &models.Account{ID: id.AccountID(uuid.New()), Email: "legacy@example.com", DisplayName: "Legacy"}
	s.Require().NoError(s.store.Save(context.Background(), legacy))

	got, err := s.accounts.Get(s.ctx, legacy.ID)
	s.Require().NoError(err)
	s.True(got.IsApproved())

	persisted, err := s.store.Get(context.Background(), legacy.ID)
	s.Require().NoError(err)
	s.True(persisted.IsApproved(), "normalization is persisted")
	s.Equal(s.now, *persisted.ApprovedAt)
}

func (s *AccountsSuite) TestGetMissingIsNotFound() {
	_, err := s.accounts.Get(s.ctx, id.AccountID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	a, err := s.accounts.Find(s.ctx, id.AccountID(uuid.New()))
	s.NoError(err)
	s.Nil(a)
}

func (s *AccountsSuite) TestCreateNormalizesEmailAndDetectsDuplicates() {
	a := models.NewPending(id.AccountID(uuid.New()), "  Mixed@Example.COM ", "M", s.now)
	s.Require().NoError(s.accounts.Create(s.ctx, a))
	s.Equal("mixed@example.com", a.Email)

	exists, err := s.accounts.ExistsByEmail(s.ctx, "MIXED@example.com")
	s.Require().NoError(err)
	s.True(exists)

	dup := models.NewPending(id.AccountID(uuid.New()), "mixed@example.com", "M", s.now)
	err = s.accounts.Create(s.ctx, dup)
	s.True(dErrors.HasCode(err, dErrors.CodeEmailInUse))
}

func (s *AccountsSuite) TestProvisionCreatesApprovedAccountOnce() {
	principal := requestcontext.VerifiedPrincipal{
		Subject: id.AccountID(uuid.New()),
		Email:   "Jane.Doe@Example.com",
	}

	a, created, err := s.accounts.Provision(s.ctx, principal)
	s.Require().NoError(err)
	s.True(created)
	s.True(a.IsApproved())
	s.Equal("jane.doe@example.com", a.Email)
	s.Equal("Jane Doe", a.DisplayName)

	again, created, err := s.accounts.Provision(s.ctx, principal)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(a.ID, again.ID)

	recs := s.auditLog.ByAction(audit.ActionAccountProvisioned)
	s.Require().Len(recs, 1)
	s.Equal(principal.Subject, recs[0].Actor)
}

func (s *AccountsSuite) TestProvisionRequiresEmail() {
	_, _, err := s.accounts.Provision(s.ctx, requestcontext.VerifiedPrincipal{Subject: id.AccountID(uuid.New())})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *AccountsSuite) TestApprove() {
	a := s.pending("p@example.com")
	admin := id.AccountID(uuid.New())

	got, err := s.approvals.Approve(s.ctx, admin, a.ID)
	s.Require().NoError(err)
	s.True(got.IsApproved())
	s.Equal(admin, *got.ApprovedBy)

	_, err = s.approvals.Approve(s.ctx, admin, a.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation), "APPROVED is not PENDING")

	recs := s.auditLog.ByAction(audit.ActionAccountApproved)
	s.Require().Len(recs, 1)
	s.Equal(a.ID, *recs[0].Target)
}

func (s *AccountsSuite) TestRejectDisablesIdentity() {
	a := s.pending("r@example.com")
	s.directory.EXPECT().SetEnabled(gomock.Any(), a.ID, false).Return(nil)

	got, err := s.approvals.Reject(s.ctx, id.AccountID(uuid.New()), a.ID, "  duplicate organizer  ")
	s.Require().NoError(err)
	s.True(got.IsRejected())
	s.Equal("duplicate organizer", got.RejectionReason)

	_, err = s.approvals.Approve(s.ctx, id.AccountID(uuid.New()), a.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation), "REJECTED is terminal")
}

func (s *AccountsSuite) TestRejectSurvivesDirectoryFailure() {
	a := s.pending("r2@example.com")
	s.directory.EXPECT().SetEnabled(gomock.Any(), a.ID, false).Return(sentinel.ErrUnavailable)

	got, err := s.approvals.Reject(s.ctx, id.AccountID(uuid.New()), a.ID, "spam")
	s.Require().NoError(err)
	s.True(got.IsRejected())
	s.Len(s.auditLog.ByAction(audit.ActionAccountRejected), 1)
}

func (s *AccountsSuite) TestRejectRequiresReason() {
	a := s.pending("r3@example.com")

	_, err := s.approvals.Reject(s.ctx, id.AccountID(uuid.New()), a.ID, "   ")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	still, err := s.store.Get(context.Background(), a.ID)
	s.Require().NoError(err)
	s.True(still.IsPending())
}

// staleReads serves every Get from a snapshot taken before any write, so
// concurrent deciders all see PENDING and race on the conditional write.
type staleReads struct {
	*store.InMemoryStore
	snapshot map[id.AccountID]models.Account
}

func (r *staleReads) Get(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	a, ok := r.snapshot[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &a, nil
}

func (s *AccountsSuite) TestConcurrentApproveAndRejectHaveOneWinner() {
	a := s.pending("race@example.com")
	reads := &staleReads{InMemoryStore: s.store, snapshot: map[id.AccountID]models.Account{a.ID: *a}}
	accounts := service.NewAccounts(reads, service.WithLogger(logger.Discard()))
	approvals := service.NewApprovalService(accounts, s.directory)
	s.directory.EXPECT().SetEnabled(gomock.Any(), a.ID, false).Return(nil).MaxTimes(1)

	var (
		wg                    sync.WaitGroup
		approveErr, rejectErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, approveErr = approvals.Approve(s.ctx, id.AccountID(uuid.New()), a.ID)
	}()
	go func() {
		defer wg.Done()
		_, rejectErr = approvals.Reject(s.ctx, id.AccountID(uuid.New()), a.ID, "spam")
	}()
	wg.Wait()

	if approveErr == nil {
		s.True(dErrors.HasCode(rejectErr, dErrors.CodeInvariantViolation), "reject: %v", rejectErr)
	} else {
		s.NoError(rejectErr)
		s.True(dErrors.HasCode(approveErr, dErrors.CodeInvariantViolation), "approve: %v", approveErr)
	}

	final, err := s.store.Get(context.Background(), a.ID)
	s.Require().NoError(err)
	if approveErr == nil {
		s.True(final.IsApproved())
		s.Empty(final.RejectionReason)
	} else {
		s.True(final.IsRejected())
		s.Nil(final.ApprovedBy)
	}
}

func (s *AccountsSuite) TestCreateNeverOverwritesExistingAccount() {
	existing := models.NewApproved(id.AccountID(uuid.New()), "kept@example.com", "Kept", s.now)
	s.Require().NoError(s.accounts.Create(s.ctx, existing))

	again := models.NewPending(existing.ID, "other@example.com", "Other", s.now)
	err := s.accounts.Create(s.ctx, again)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)

	got, err := s.store.Get(context.Background(), existing.ID)
	s.Require().NoError(err)
	s.True(got.IsApproved())
	s.Equal("kept@example.com", got.Email)
}

func (s *AccountsSuite) TestProvisionLosingInsertRaceReturnsWinner() {
	principal := requestcontext.VerifiedPrincipal{Subject: id.AccountID(uuid.New()), Email: "winner@example.com"}
	winner := models.NewApproved(principal.Subject, "winner@example.com", "Winner", s.now)

	ctrl := gomock.NewController(s.T())
	st := mocks.NewMockStore(ctrl)
	gomock.InOrder(
		st.EXPECT().Get(gomock.Any(), principal.Subject).Return(nil, sentinel.ErrNotFound),
		st.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict),
		st.EXPECT().Get(gomock.Any(), principal.Subject).Return(winner, nil),
	)

	got, created, err := service.NewAccounts(st, service.WithLogger(logger.Discard())).Provision(s.ctx, principal)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(winner, got)
}

func (s *AccountsSuite) TestNormalizeLosingRaceReloads() {
	legacy := &models.Account{ID: id.AccountID(uuid.New()), Email: "legacy2@example.com", DisplayName: "L"}
	normalized := *legacy
	normalized.Normalize(s.now.Add(-time.Minute))

	ctrl := gomock.NewController(s.T())
	st := mocks.NewMockStore(ctrl)
	gomock.InOrder(
		st.EXPECT().Get(gomock.Any(), legacy.ID).Return(legacy, nil),
		st.EXPECT().TransitionStatus(gomock.Any(), gomock.Any(), models.ApprovalStatusUnset).Return(sentinel.ErrInvalidState),
		st.EXPECT().Get(gomock.Any(), legacy.ID).Return(&normalized, nil),
	)

	got, err := service.NewAccounts(st, service.WithLogger(logger.Discard())).Get(s.ctx, legacy.ID)
	s.Require().NoError(err)
	s.Equal(s.now.Add(-time.Minute), *got.ApprovedAt)
}

func (s *AccountsSuite) TestListValidatesStatus() {
	s.pending("l1@example.com")
	s.pending("l2@example.com")

	page, err := s.approvals.List(s.ctx, models.ApprovalStatusPending, id.PageRequest{})
	s.Require().NoError(err)
	s.Equal(2, page.Total)

	_, err = s.approvals.List(s.ctx, models.ApprovalStatusUnset, id.PageRequest{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestStoreUnavailableIsCoded(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)
	st.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.Join(sentinel.ErrUnavailable, errors.New("dial tcp")))

	_, err := service.NewAccounts(st, service.WithLogger(logger.Discard())).Get(context.Background(), id.AccountID(uuid.New()))
	if !dErrors.HasCode(err, dErrors.CodeUnavailable) {
		t.Fatalf("want unavailable, got %v", err)
	}
}

func TestLoadSystemActor(t *testing.T) {
	actor, err := service.LoadSystemActor(context.Background(), store.NewInMemory())
	if err != nil {
		t.Fatal(err)
	}
	if !actor.ID().IsSystem() {
		t.Fatalf("got %s", actor.ID())
	}

	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)
	st.EXPECT().Get(gomock.Any(), id.SystemAccountID()).Return(nil, sentinel.ErrNotFound)
	if _, err := service.LoadSystemActor(context.Background(), st); !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}
