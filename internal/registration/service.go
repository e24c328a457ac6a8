// Package registration creates an account and its directory identity as one
// logical step. The directory and the account store share no transaction,
// so every completed step registers a compensation that runs, newest first,
// when a later step fails.
package registration

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accountmodels "boxoffice/internal/account/models"
	"boxoffice/internal/audit"
	eventmodels "boxoffice/internal/event/models"
	"boxoffice/internal/identity"
	invitemodels "boxoffice/internal/invite/models"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/sentinel"
	"boxoffice/pkg/requestcontext"
)

type Accounts interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Find(ctx context.Context, accountID id.AccountID) (*accountmodels.Account, error)
	Create(ctx context.Context, a *accountmodels.Account) error
	Delete(ctx context.Context, accountID id.AccountID) error
}

// Invites is satisfied by *invite/service.Service.
type Invites interface {
	Validate(ctx context.Context, raw string) (*invitemodels.InviteCode, error)
	ClaimForAccount(ctx context.Context, c *invitemodels.InviteCode, accountID id.AccountID) error
}

type EventStore interface {
	Get(ctx context.Context, eventID id.EventID) (*eventmodels.Event, error)
	Grant(ctx context.Context, g eventmodels.StaffGrant) (bool, error)
	RevokeStaff(ctx context.Context, eventID id.EventID, accountID id.AccountID) (bool, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type Metrics struct {
	Outcomes  *prometheus.CounterVec
	Rollbacks *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxoffice_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),
		Rollbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxoffice_registration_rollback_steps_total",
			Help: "Compensation steps run after a failed registration",
		}, []string{"step", "result"}),
	}
}

type Orchestrator struct {
	accounts  Accounts
	invites   Invites
	events    EventStore
	directory identity.Directory
	audit     AuditRecorder
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	system    id.AccountID
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithAuditRecorder(r AuditRecorder) Option {
	return func(o *Orchestrator) {
		o.audit = r
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithSystemActor sets the actor credited with failures that happen before
// an account exists.
func WithSystemActor(actorID id.AccountID) Option {
	return func(o *Orchestrator) {
		o.system = actorID
	}
}

func New(accounts Accounts, invites Invites, events EventStore, directory identity.Directory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		accounts:  accounts,
		invites:   invites,
		events:    events,
		directory: directory,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.system.IsNil() {
		o.system = id.SystemAccountID()
	}
	o.tracer = otel.Tracer("boxoffice/internal/registration")
	return o
}

// attempt tracks one registration: what it resolved and how to undo it.
type attempt struct {
	req     Request
	invite  *invitemodels.InviteCode
	role    identity.Role
	event   *eventmodels.Event
	target  *id.AccountID
	created bool
	undo    []compensation
}

type compensation struct {
	step string
	run  func(ctx context.Context) error
}

func (a *attempt) onFailure(step string, run func(ctx context.Context) error) {
	a.undo = append(a.undo, compensation{step: step, run: run})
}

// Register creates a PENDING account, optionally shaped by an invite code.
// Registration never approves; approval is a separate administrative act.
func (o *Orchestrator) Register(ctx context.Context, req Request) (_ *Result, err error) {
	ctx, span := o.tracer.Start(ctx, "registration.register")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, dErrors.Message(err))
		}
		span.End()
	}()

	req.Normalize()
	a := &attempt{req: req, role: identity.DefaultRole}
	if err := req.Validate(); err != nil {
		return nil, o.fail(ctx, a, reasonInvalidRequest, err)
	}

	// 1. no local account for this e-mail
	exists, err := o.accounts.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, o.fail(ctx, a, reasonAccountLookup, err)
	}
	if exists {
		return nil, o.fail(ctx, a, reasonEmailInUse, errEmailInUse())
	}

	// 2. resolve the role and event from the invite
	if req.InviteCode != "" {
		if err := o.resolveInvite(ctx, a); err != nil {
			return nil, o.fail(ctx, a, reasonInvalidInvite, err)
		}
	}
	span.SetAttributes(attribute.String("registration.role", string(a.role)))

	// 3. find or create the directory identity
	accountID, reason, err := o.identityFor(ctx, a)
	if err != nil {
		return nil, o.fail(ctx, a, reason, err)
	}

	// 4. assign the role
	if err := o.assignRole(ctx, a, accountID); err != nil {
		return nil, o.fail(ctx, a, reasonRoleAssign, err)
	}

	// 5. persist the PENDING account
	account := accountmodels.NewPending(accountID, req.Email, req.DisplayName, requestcontext.Now(ctx))
	if err := o.accounts.Create(ctx, account); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeEmailInUse) {
			// provisioned or registered since step 1; the row is not ours to delete
			return nil, o.fail(ctx, a, reasonEmailInUse, errEmailInUse())
		}
		return nil, o.fail(ctx, a, reasonAccountSave, err)
	}
	a.onFailure("delete_account", func(ctx context.Context) error {
		return o.accounts.Delete(ctx, accountID)
	})

	// 6. staff grant for event-scoped invites
	if a.event != nil {
		eventID := a.event.ID
		created, err := o.events.Grant(ctx, eventmodels.StaffGrant{EventID: eventID, AccountID: accountID, GrantedAt: requestcontext.Now(ctx)})
		if err != nil {
			return nil, o.fail(ctx, a, reasonStaffGrant, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record staff grant"))
		}
		if created {
			a.onFailure("revoke_staff_grant", func(ctx context.Context) error {
				_, err := o.events.RevokeStaff(ctx, eventID, accountID)
				return err
			})
		}
	}

	// 7. mark the invite REDEEMED
	if a.invite != nil {
		if err := o.invites.ClaimForAccount(ctx, a.invite, accountID); err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvalidInviteCode) {
				return nil, o.fail(ctx, a, reasonInviteClaimLost, err)
			}
			o.logger.ErrorContext(ctx, "failed to mark invite redeemed after registration",
				"invite_code_id", a.invite.ID.String(),
				"account_id", accountID.String(),
				"error", err,
			)
		}
	}

	// 8. success
	result := &Result{
		AccountID: accountID,
		Email:     req.Email,
		Status:    account.Status,
		Role:      a.role,
	}
	details := "role=" + string(a.role)
	if a.invite != nil {
		details += "; invite=" + a.invite.ID.String()
	}
	var eventID *id.EventID
	if a.event != nil {
		eventID = &a.event.ID
		result.EventID = eventID
		result.EventName = a.event.Name
	}
	o.count("success")
	o.logger.InfoContext(ctx, "account registered",
		"account_id", accountID.String(),
		"role", string(a.role),
		"reused_identity", !a.created,
	)
	o.record(ctx, audit.Entry{
		Action:       audit.ActionAccountRegistered,
		Actor:        accountID,
		Target:       &accountID,
		ResourceType: "account",
		ResourceID:   accountID.String(),
		EventID:      eventID,
		Details:      details,
	})
	return result, nil
}

func (o *Orchestrator) resolveInvite(ctx context.Context, a *attempt) error {
	c, err := o.invites.Validate(ctx, a.req.InviteCode)
	if err != nil {
		return err
	}
	a.invite = c
	a.role = c.Role
	if c.TargetEventID == nil {
		return nil
	}
	event, err := o.events.Get(ctx, *c.TargetEventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}
	a.event = event
	return nil
}

// identityFor reuses an orphaned directory identity left by an earlier
// failed attempt, or creates a new one.
func (o *Orchestrator) identityFor(ctx context.Context, a *attempt) (id.AccountID, string, error) {
	existing, found, err := o.directory.FindIDByEmail(ctx, a.req.Email)
	if err != nil {
		return id.AccountID{}, reasonDirectoryLookup, identity.Fault(err, "failed to look up identity")
	}
	if found {
		a.target = &existing
		account, err := o.accounts.Find(ctx, existing)
		if err != nil {
			return id.AccountID{}, reasonAccountLookup, err
		}
		if account != nil {
			return id.AccountID{}, reasonEmailInUse, errEmailInUse()
		}
		o.logger.InfoContext(ctx, "reusing directory identity without account", "account_id", existing.String())
		return existing, "", nil
	}

	created, err := o.directory.CreateIdentity(ctx, a.req.Email, a.req.Password, a.req.DisplayName)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return id.AccountID{}, reasonEmailInUse, errEmailInUse()
		}
		return id.AccountID{}, reasonIdentityCreate, identity.Fault(err, "failed to create identity")
	}
	a.target = &created
	a.created = true
	a.onFailure("delete_identity", func(ctx context.Context) error {
		return o.directory.DeleteIdentity(ctx, created)
	})
	return created, "", nil
}

// assignRole grants the role. A reused identity that already holds it is
// left alone, and on rollback only a role this attempt added is revoked.
func (o *Orchestrator) assignRole(ctx context.Context, a *attempt, accountID id.AccountID) error {
	if !a.created {
		has, err := o.directory.HasRole(ctx, accountID, a.role)
		if err != nil {
			return identity.Fault(err, "failed to read identity roles")
		}
		if has {
			return nil
		}
	}
	if err := o.directory.AssignRole(ctx, accountID, a.role); err != nil {
		return identity.Fault(err, "failed to assign role")
	}
	if !a.created {
		role := a.role
		a.onFailure("revoke_role", func(ctx context.Context) error {
			return o.directory.RevokeRole(ctx, accountID, role)
		})
	}
	return nil
}

// fail unwinds completed steps and records the failure. The returned error
// is always the original cause; rollback problems are only logged and
// audited.
func (o *Orchestrator) fail(ctx context.Context, a *attempt, reason string, cause error) error {
	o.unwind(ctx, a)
	o.count(reason)
	o.logger.WarnContext(ctx, "registration failed",
		"reason", reason,
		"error", cause,
	)
	o.record(ctx, audit.Entry{
		Action:       audit.ActionRegistrationFailed,
		Actor:        o.system,
		Target:       a.target,
		ResourceType: "account",
		Details:      "reason=" + reason + "; email=" + a.req.Email,
	})
	return cause
}

func (o *Orchestrator) unwind(ctx context.Context, a *attempt) {
	ctx = context.WithoutCancel(ctx)
	for i := len(a.undo) - 1; i >= 0; i-- {
		step := a.undo[i]
		if err := step.run(ctx); err != nil {
			o.countRollback(step.step, "failed")
			o.logger.ErrorContext(ctx, "registration rollback step failed",
				"step", step.step,
				"email", a.req.Email,
				"error", err,
			)
			o.record(ctx, audit.Entry{
				Action:       audit.ActionRegistrationRollbackFailed,
				Actor:        o.system,
				Target:       a.target,
				ResourceType: "account",
				Details:      "step=" + step.step + "; email=" + a.req.Email,
			})
			continue
		}
		o.countRollback(step.step, "ok")
	}
	a.undo = nil
}

func (o *Orchestrator) record(ctx context.Context, e audit.Entry) {
	if o.audit != nil {
		o.audit.Record(ctx, e)
	}
}

func (o *Orchestrator) count(outcome string) {
	if o.metrics != nil {
		o.metrics.Outcomes.WithLabelValues(outcome).Inc()
	}
}

func (o *Orchestrator) countRollback(step, result string) {
	if o.metrics != nil {
		o.metrics.Rollbacks.WithLabelValues(step, result).Inc()
	}
}

func errEmailInUse() error {
	return dErrors.New(dErrors.CodeEmailInUse, "email is already registered")
}
