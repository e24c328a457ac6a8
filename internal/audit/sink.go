package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	id "boxoffice/pkg/domain"
	"boxoffice/pkg/requestcontext"
)

// Store persists records. Implementations must write outside any ambient
// unit of work carried by ctx so an audit write commits on its own.
type Store interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context, filter Filter) ([]Record, error)
}

// Mirror receives a copy of each persisted record. Enqueue must not block.
type Mirror interface {
	Enqueue(rec Record)
}

// Metrics counts audit writes.
type Metrics struct {
	Written *prometheus.CounterVec
	Failed  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Written: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxoffice_audit_records_total",
			Help: "Audit records persisted, by action",
		}, []string{"action"}),
		Failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxoffice_audit_write_failures_total",
			Help: "Audit records that could not be persisted, by action",
		}, []string{"action"}),
	}
}

// Sink is the single entry point for audit writes. Record never returns an
// error: failures are logged, counted and discarded.
type Sink struct {
	store   Store
	mirror  Mirror
	logger  *slog.Logger
	metrics *Metrics
	timeout time.Duration
	system  id.AccountID
}

type Option func(*Sink)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

func WithMirror(m Mirror) Option {
	return func(s *Sink) {
		s.mirror = m
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Sink) {
		s.metrics = m
	}
}

// WithSystemActor sets the actor recorded for entries that carry none.
func WithSystemActor(actorID id.AccountID) Option {
	return func(s *Sink) {
		s.system = actorID
	}
}

const defaultWriteTimeout = 3 * time.Second

func NewSink(store Store, opts ...Option) *Sink {
	s := &Sink{store: store, timeout: defaultWriteTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.system.IsNil() {
		s.system = id.SystemAccountID()
	}
	return s
}

// Record stamps e with request metadata and persists it. A nil actor is
// recorded as the SYSTEM account.
func (s *Sink) Record(ctx context.Context, e Entry) {
	rec := s.build(ctx, e)

	// the write outlives caller cancellation but not a stuck store
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.store.Append(writeCtx, rec); err != nil {
		s.logger.ErrorContext(ctx, "audit write failed",
			"action", rec.Action,
			"audit_id", rec.ID,
			"actor_id", rec.Actor.String(),
			"request_id", rec.RequestID,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.Failed.WithLabelValues(string(rec.Action)).Inc()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.Written.WithLabelValues(string(rec.Action)).Inc()
	}
	if s.mirror != nil {
		s.mirror.Enqueue(rec)
	}
}

// List is a read-through to the store for administrative views.
func (s *Sink) List(ctx context.Context, filter Filter) ([]Record, error) {
	return s.store.List(ctx, filter)
}

func (s *Sink) build(ctx context.Context, e Entry) Record {
	now := requestcontext.Now(ctx)
	actor := e.Actor
	if actor.IsNil() {
		actor = s.system
	}
	return Record{
		ID:           ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Action:       e.Action,
		Severity:     e.Action.Severity(),
		Actor:        actor,
		Target:       e.Target,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		EventID:      e.EventID,
		Details:      e.Details,
		ClientIP:     requestcontext.ClientIP(ctx),
		UserAgent:    requestcontext.UserAgent(ctx),
		RequestID:    requestcontext.RequestID(ctx),
		CreatedAt:    now.UTC(),
	}
}
