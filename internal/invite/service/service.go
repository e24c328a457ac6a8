// Package service issues, validates and redeems invite codes.
//
// Redemption is one unit of work: the status compare-and-set, the staff
// grant and the directory role assignment either all land or none do.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accountmodels "boxoffice/internal/account/models"
	"boxoffice/internal/audit"
	eventmodels "boxoffice/internal/event/models"
	"boxoffice/internal/identity"
	"boxoffice/internal/invite/models"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/sentinel"
	"boxoffice/pkg/platform/tx"
	"boxoffice/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,AccountResolver,EventStore,RoleDirectory,AuditRecorder

const maxGenerateAttempts = 5

// Store is the persistence port for invite codes. Transitions are
// compare-and-set on PENDING and report sentinel.ErrInvalidState on a miss.
type Store interface {
	Create(ctx context.Context, c *models.InviteCode) error
	Get(ctx context.Context, codeID id.InviteCodeID) (*models.InviteCode, error)
	GetByCode(ctx context.Context, code string) (*models.InviteCode, error)
	ClaimPending(ctx context.Context, codeID id.InviteCodeID, redeemer id.AccountID, now time.Time) (*models.InviteCode, error)
	MarkExpired(ctx context.Context, codeID id.InviteCodeID, now time.Time) (bool, error)
	Revoke(ctx context.Context, codeID id.InviteCodeID, reason string, now time.Time) (*models.InviteCode, error)
	MarkExpiredBefore(ctx context.Context, now time.Time) (int, error)
	ListByCreator(ctx context.Context, creator id.AccountID, page id.PageRequest) (id.Page[*models.InviteCode], error)
}

// AccountResolver returns a CodeNotFound error for an unknown account.
type AccountResolver interface {
	Get(ctx context.Context, accountID id.AccountID) (*accountmodels.Account, error)
}

type EventStore interface {
	Get(ctx context.Context, eventID id.EventID) (*eventmodels.Event, error)
	Grant(ctx context.Context, g eventmodels.StaffGrant) (bool, error)
}

// RoleDirectory is the slice of identity.Directory redemption needs.
type RoleDirectory interface {
	AssignRole(ctx context.Context, accountID id.AccountID, role identity.Role) error
	RevokeRole(ctx context.Context, accountID id.AccountID, role identity.Role) error
	HasRole(ctx context.Context, accountID id.AccountID, role identity.Role) (bool, error)
	GetRoles(ctx context.Context, accountID id.AccountID) ([]identity.Role, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type Metrics struct {
	Generated   *prometheus.CounterVec
	Redemptions *prometheus.CounterVec
	Expired     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Generated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxoffice_invites_generated_total",
			Help: "Invite codes generated by role",
		}, []string{"role"}),
		Redemptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxoffice_invite_redemptions_total",
			Help: "Invite redemption attempts by outcome",
		}, []string{"outcome"}),
		Expired: f.NewCounter(prometheus.CounterOpts{
			Name: "boxoffice_invites_expired_total",
			Help: "Invite codes flipped to EXPIRED by sweeps",
		}),
	}
}

type Service struct {
	store     Store
	accounts  AccountResolver
	events    EventStore
	directory RoleDirectory
	tx        tx.Runner
	generator *models.Generator
	audit     AuditRecorder
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	system    id.AccountID
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditRecorder(r AuditRecorder) Option {
	return func(s *Service) {
		s.audit = r
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithGenerator(g *models.Generator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

// WithSystemActor sets the actor credited with sweeps.
func WithSystemActor(actorID id.AccountID) Option {
	return func(s *Service) {
		s.system = actorID
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(store Store, accounts AccountResolver, events EventStore, directory RoleDirectory, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:     store,
		accounts:  accounts,
		events:    events,
		directory: directory,
		tx:        runner,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.generator == nil {
		s.generator = models.NewGenerator(nil)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("boxoffice/internal/invite")
	}
	if s.system.IsNil() {
		s.system = id.SystemAccountID()
	}
	return s
}

func (s *Service) resolveAccount(ctx context.Context, accountID id.AccountID) (*accountmodels.Account, error) {
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, err
	}
	return a, nil
}

func (s *Service) resolveEvent(ctx context.Context, eventID *id.EventID) (*eventmodels.Event, error) {
	if eventID == nil {
		return nil, nil
	}
	e, err := s.events.Get(ctx, *eventID)
	if err != nil {
		return nil, translate(err, "event not found", "failed to load event")
	}
	return e, nil
}

// Get loads a code by id with lazy expiry applied.
func (s *Service) Get(ctx context.Context, codeID id.InviteCodeID) (*models.InviteCode, error) {
	c, err := s.store.Get(ctx, codeID)
	if err != nil {
		return nil, translate(err, "invite code not found", "failed to load invite code")
	}
	s.expireIfLapsed(ctx, c)
	return c, nil
}

// ListByCreator pages through codes issued by creator. Lapsed codes are
// reported as EXPIRED even before the sweep persists it.
func (s *Service) ListByCreator(ctx context.Context, creator id.AccountID, page id.PageRequest) (id.Page[*models.InviteCode], error) {
	result, err := s.store.ListByCreator(ctx, creator, page)
	if err != nil {
		return result, translate(err, "", "failed to list invite codes")
	}
	now := requestcontext.Now(ctx)
	for _, c := range result.Items {
		c.ApplyExpiry(now)
	}
	return result, nil
}

// expireIfLapsed persists the EXPIRED flip for a lapsed code. A failed write
// is logged; the in-memory copy is flipped regardless.
func (s *Service) expireIfLapsed(ctx context.Context, c *models.InviteCode) {
	now := requestcontext.Now(ctx)
	if !c.IsExpiredAt(now) {
		return
	}
	if _, err := s.store.MarkExpired(ctx, c.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to persist invite expiry",
			"invite_code_id", c.ID.String(),
			"error", err,
		)
	}
	c.ApplyExpiry(now)
}

func (s *Service) record(ctx context.Context, e audit.Entry) {
	if s.audit != nil {
		s.audit.Record(ctx, e)
	}
}

func (s *Service) countRedemption(outcome string) {
	if s.metrics != nil {
		s.metrics.Redemptions.WithLabelValues(outcome).Inc()
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.Message(err))
	}
	span.End()
}

func translate(err error, notFound, internal string) error {
	switch {
	case notFound != "" && errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFound)
	case sentinel.IsUnavailable(err):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "invite store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, internal)
	}
}

func roleDetails(c *models.InviteCode) string {
	details := fmt.Sprintf("role=%s", c.Role)
	if c.TargetEventID != nil {
		details += "; event=" + c.TargetEventID.String()
	}
	return details
}
