// Package authz decides resource-level access to events. Decisions are
// derived from local ownership and staff grants only. Directory role claims
// are never consulted and nothing is cached across calls.
package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	accountmodels "boxoffice/internal/account/models"
	"boxoffice/internal/audit"
	"boxoffice/internal/event/models"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/sentinel"
)

// AccountFinder returns (nil, nil) for an unknown account.
type AccountFinder interface {
	Find(ctx context.Context, accountID id.AccountID) (*accountmodels.Account, error)
}

type EventStore interface {
	Get(ctx context.Context, eventID id.EventID) (*models.Event, error)
	IsStaff(ctx context.Context, eventID id.EventID, accountID id.AccountID) (bool, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Check names the rule being enforced.
type Check string

const (
	CheckOrganizer        Check = "organizer"
	CheckStaff            Check = "staff"
	CheckOrganizerOrStaff Check = "organizer_or_staff"
)

type Metrics struct {
	Decisions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "boxoffice_authz_decisions_total",
			Help: "Event access decisions by check and outcome",
		}, []string{"check", "outcome"}),
	}
}

type Engine struct {
	accounts AccountFinder
	events   EventStore
	audit    AuditRecorder
	logger   *slog.Logger
	metrics  *Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithAuditRecorder(r AuditRecorder) Option {
	return func(e *Engine) {
		e.audit = r
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func New(accounts AccountFinder, events EventStore, opts ...Option) *Engine {
	e := &Engine{accounts: accounts, events: events}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// RequireOrganizer fails unless userID organizes eventID.
func (e *Engine) RequireOrganizer(ctx context.Context, userID id.AccountID, eventID id.EventID) (*models.Event, error) {
	return e.require(ctx, CheckOrganizer, userID, eventID)
}

// RequireStaff fails unless userID holds a staff grant on eventID.
func (e *Engine) RequireStaff(ctx context.Context, userID id.AccountID, eventID id.EventID) (*models.Event, error) {
	return e.require(ctx, CheckStaff, userID, eventID)
}

// RequireOrganizerOrStaff fails unless userID organizes or staffs eventID.
func (e *Engine) RequireOrganizerOrStaff(ctx context.Context, userID id.AccountID, eventID id.EventID) (*models.Event, error) {
	return e.require(ctx, CheckOrganizerOrStaff, userID, eventID)
}

// IsOrganizer is RequireOrganizer without the error. Lookup failures are false.
func (e *Engine) IsOrganizer(ctx context.Context, userID id.AccountID, eventID id.EventID) bool {
	return e.allowed(ctx, CheckOrganizer, userID, eventID)
}

func (e *Engine) IsStaff(ctx context.Context, userID id.AccountID, eventID id.EventID) bool {
	return e.allowed(ctx, CheckStaff, userID, eventID)
}

func (e *Engine) HasAccess(ctx context.Context, userID id.AccountID, eventID id.EventID) bool {
	return e.allowed(ctx, CheckOrganizerOrStaff, userID, eventID)
}

func (e *Engine) require(ctx context.Context, check Check, userID id.AccountID, eventID id.EventID) (*models.Event, error) {
	if _, err := e.resolveUser(ctx, userID); err != nil {
		e.count(check, "error")
		return nil, err
	}
	ev, err := e.resolveEvent(ctx, eventID)
	if err != nil {
		e.count(check, "error")
		return nil, err
	}

	ok, reason, err := e.evaluate(ctx, check, userID, ev)
	if err != nil {
		e.count(check, "error")
		return nil, err
	}
	if !ok {
		e.count(check, "denied")
		e.deny(ctx, check, userID, ev, reason)
		return nil, dErrors.Newf(dErrors.CodeForbidden, "access denied to event %s: %s", ev.ID, reason)
	}
	e.count(check, "allowed")
	return ev, nil
}

func (e *Engine) allowed(ctx context.Context, check Check, userID id.AccountID, eventID id.EventID) bool {
	a, err := e.accounts.Find(ctx, userID)
	if err != nil || a == nil {
		return false
	}
	ev, err := e.events.Get(ctx, eventID)
	if err != nil {
		return false
	}
	ok, _, err := e.evaluate(ctx, check, userID, ev)
	if err != nil {
		e.logger.WarnContext(ctx, "access check failed",
			"check", check,
			"event_id", eventID.String(),
			"error", err,
		)
		return false
	}
	return ok
}

func (e *Engine) evaluate(ctx context.Context, check Check, userID id.AccountID, ev *models.Event) (bool, string, error) {
	organizer := ev.IsOrganizedBy(userID)
	switch check {
	case CheckOrganizer:
		if organizer {
			return true, "", nil
		}
		return false, "caller is not the event organizer", nil
	case CheckStaff, CheckOrganizerOrStaff:
		if check == CheckOrganizerOrStaff && organizer {
			return true, "", nil
		}
		staff, err := e.events.IsStaff(ctx, ev.ID, userID)
		if err != nil {
			return false, "", dErrors.Wrap(err, codeFor(err), "failed to check staff access")
		}
		if staff {
			return true, "", nil
		}
		if check == CheckStaff {
			return false, "caller is not assigned staff for this event", nil
		}
		return false, "caller is neither the organizer nor assigned staff", nil
	default:
		return false, "unknown access check", nil
	}
}

func (e *Engine) resolveUser(ctx context.Context, userID id.AccountID) (*accountmodels.Account, error) {
	a, err := e.accounts.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return a, nil
}

func (e *Engine) resolveEvent(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	ev, err := e.events.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, codeFor(err), "failed to load event")
	}
	return ev, nil
}

func (e *Engine) deny(ctx context.Context, check Check, userID id.AccountID, ev *models.Event, reason string) {
	e.logger.InfoContext(ctx, "event access denied",
		"check", check,
		"account_id", userID.String(),
		"event_id", ev.ID.String(),
		"reason", reason,
	)
	if e.audit == nil {
		return
	}
	eventID := ev.ID
	e.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionAccessDenied,
		Actor:        userID,
		ResourceType: "event",
		ResourceID:   ev.ID.String(),
		EventID:      &eventID,
		Details:      "check=" + string(check) + "; reason=" + reason,
	})
}

func (e *Engine) count(check Check, outcome string) {
	if e.metrics != nil {
		e.metrics.Decisions.WithLabelValues(string(check), outcome).Inc()
	}
}

func codeFor(err error) dErrors.Code {
	if sentinel.IsUnavailable(err) {
		return dErrors.CodeUnavailable
	}
	return dErrors.CodeInternal
}
