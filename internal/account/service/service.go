// Package service is the only read path for accounts. Every read normalizes
// the legacy NULL approval status before the account is handed out.
package service

import (
	"context"
	"errors"
	"log/slog"

	"boxoffice/internal/account/models"
	"boxoffice/internal/audit"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/email"
	"boxoffice/pkg/platform/sentinel"
	"boxoffice/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,AuditRecorder

// Store is the persistence port for accounts.
type Store interface {
	Get(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, account *models.Account) error
	Insert(ctx context.Context, account *models.Account) error
	TransitionStatus(ctx context.Context, account *models.Account, from models.ApprovalStatus) error
	Delete(ctx context.Context, accountID id.AccountID) error
	FindByApprovalStatus(ctx context.Context, status models.ApprovalStatus, page id.PageRequest) (id.Page[*models.Account], error)
}

// AuditRecorder is satisfied by *audit.Sink.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Accounts reads, creates and provisions accounts.
type Accounts struct {
	store  Store
	audit  AuditRecorder
	logger *slog.Logger
}

type Option func(*Accounts)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Accounts) {
		a.logger = logger
	}
}

func WithAuditRecorder(r AuditRecorder) Option {
	return func(a *Accounts) {
		a.audit = r
	}
}

func NewAccounts(store Store, opts ...Option) *Accounts {
	a := &Accounts{store: store}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Get resolves an account by id. A missing account is CodeNotFound.
func (s *Accounts) Get(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	a, err := s.store.Get(ctx, accountID)
	if err != nil {
		return nil, translate(err, "account not found", "failed to load account")
	}
	return s.normalize(ctx, a)
}

// Find is Get without the NotFound error: a missing account yields (nil, nil).
func (s *Accounts) Find(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	a, err := s.Get(ctx, accountID)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, nil
	}
	return a, err
}

func (s *Accounts) GetByEmail(ctx context.Context, addr string) (*models.Account, error) {
	a, err := s.store.GetByEmail(ctx, email.Normalize(addr))
	if err != nil {
		return nil, translate(err, "account not found", "failed to load account")
	}
	return s.normalize(ctx, a)
}

func (s *Accounts) ExistsByEmail(ctx context.Context, addr string) (bool, error) {
	exists, err := s.store.ExistsByEmail(ctx, email.Normalize(addr))
	if err != nil {
		return false, translate(err, "", "failed to check email")
	}
	return exists, nil
}

// Create inserts a new account and never overwrites an existing one. A
// taken email is CodeEmailInUse; an existing account with the same id is
// CodeConflict.
func (s *Accounts) Create(ctx context.Context, a *models.Account) error {
	a.Email = email.Normalize(a.Email)
	if err := s.store.Insert(ctx, a); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return dErrors.New(dErrors.CodeEmailInUse, "email is already registered")
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.New(dErrors.CodeConflict, "account already exists")
		}
		return translate(err, "", "failed to save account")
	}
	return nil
}

// Save persists changes to an existing account.
func (s *Accounts) Save(ctx context.Context, a *models.Account) error {
	if err := s.store.Save(ctx, a); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.New(dErrors.CodeEmailInUse, "email is already registered")
		}
		return translate(err, "", "failed to save account")
	}
	return nil
}

// Delete removes an account. Only registration rollback calls this.
func (s *Accounts) Delete(ctx context.Context, accountID id.AccountID) error {
	if err := s.store.Delete(ctx, accountID); err != nil {
		return translate(err, "", "failed to delete account")
	}
	return nil
}

// Provision creates an APPROVED account for a verified caller seen for the
// first time. Callers that already have an account are returned unchanged.
func (s *Accounts) Provision(ctx context.Context, principal requestcontext.VerifiedPrincipal) (*models.Account, bool, error) {
	existing, err := s.Find(ctx, principal.Subject)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	addr := email.Normalize(principal.Email)
	if addr == "" {
		return nil, false, dErrors.New(dErrors.CodeUnauthorized, "token carries no email")
	}
	displayName := principal.DisplayName
	if displayName == "" {
		displayName = email.DisplayName(addr)
	}

	a := models.NewApproved(principal.Subject, addr, displayName, requestcontext.Now(ctx))
	if err := s.Create(ctx, a); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeEmailInUse) {
			// a concurrent request for the same caller won the insert
			if again, findErr := s.Find(ctx, principal.Subject); findErr == nil && again != nil {
				return again, false, nil
			}
		}
		return nil, false, err
	}

	s.logger.InfoContext(ctx, "account provisioned", "account_id", a.ID.String())
	s.record(ctx, audit.Entry{
		Action:       audit.ActionAccountProvisioned,
		Actor:        a.ID,
		Target:       &a.ID,
		ResourceType: "account",
		ResourceID:   a.ID.String(),
		Details:      "legacy token holder provisioned as APPROVED",
	})
	return a, true, nil
}

// transition persists a status change made on an account loaded in from.
// Losing to a concurrent change is CodeInvariantViolation.
func (s *Accounts) transition(ctx context.Context, a *models.Account, from models.ApprovalStatus) error {
	if err := s.store.TransitionStatus(ctx, a, from); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "account is no longer %s", from)
		}
		return translate(err, "account not found", "failed to update account status")
	}
	return nil
}

// normalize persists the legacy NULL status as APPROVED.
func (s *Accounts) normalize(ctx context.Context, a *models.Account) (*models.Account, error) {
	if !a.Normalize(requestcontext.Now(ctx)) {
		return a, nil
	}
	if err := s.transition(ctx, a, models.ApprovalStatusUnset); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, err
		}
		// another request normalized it first
		current, getErr := s.store.Get(ctx, a.ID)
		if getErr != nil {
			return nil, translate(getErr, "account not found", "failed to load account")
		}
		return current, nil
	}
	s.logger.InfoContext(ctx, "legacy account status normalized", "account_id", a.ID.String())
	return a, nil
}

func (s *Accounts) record(ctx context.Context, e audit.Entry) {
	if s.audit != nil {
		s.audit.Record(ctx, e)
	}
}

// translate maps store facts onto coded errors. An empty notFound message
// treats a missing row as an internal fault.
func translate(err error, notFound, internal string) error {
	switch {
	case notFound != "" && errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFound)
	case sentinel.IsUnavailable(err):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "account store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, internal)
	}
}
