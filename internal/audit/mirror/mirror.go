package mirror

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"boxoffice/internal/audit"
)

// Publisher delivers a batch of records to the external stream.
type Publisher interface {
	Publish(ctx context.Context, recs []audit.Record) error
}

type Metrics struct {
	Published prometheus.Counter
	Dropped   prometheus.Counter
	Failures  prometheus.Counter
	Pending   prometheus.GaugeFunc
}

// Mirror buffers records and drains them to a Publisher from a single
// background loop. Enqueue never blocks.
type Mirror struct {
	buf       *RingBuffer
	publisher Publisher
	logger    *slog.Logger
	metrics   *Metrics

	batchSize int
	interval  time.Duration
	wake      chan struct{}
}

type Option func(*Mirror)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) {
		m.logger = logger
	}
}

func WithBatchSize(n int) Option {
	return func(m *Mirror) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(m *Mirror) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMetrics registers mirror metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(m *Mirror) {
		f := promauto.With(reg)
		m.metrics = &Metrics{
			Published: f.NewCounter(prometheus.CounterOpts{
				Name: "boxoffice_audit_mirror_published_total",
				Help: "Audit records delivered to the stream",
			}),
			Dropped: f.NewCounter(prometheus.CounterOpts{
				Name: "boxoffice_audit_mirror_dropped_total",
				Help: "Audit records dropped because the mirror buffer was full",
			}),
			Failures: f.NewCounter(prometheus.CounterOpts{
				Name: "boxoffice_audit_mirror_publish_failures_total",
				Help: "Failed publish attempts",
			}),
			Pending: f.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "boxoffice_audit_mirror_pending",
				Help: "Audit records waiting to be published",
			}, func() float64 { return float64(m.buf.Len()) }),
		}
	}
}

const (
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	drainTimeout         = 5 * time.Second
)

func New(publisher Publisher, capacity int, opts ...Option) *Mirror {
	m := &Mirror{
		buf:       NewRingBuffer(capacity),
		publisher: publisher,
		batchSize: defaultBatchSize,
		interval:  defaultFlushInterval,
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Enqueue implements audit.Mirror.
func (m *Mirror) Enqueue(rec audit.Record) {
	if m.buf.Push(rec) && m.metrics != nil {
		m.metrics.Dropped.Inc()
	}
	if m.buf.Len() >= m.batchSize {
		select {
		case m.wake <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of buffered records.
func (m *Mirror) Pending() int {
	return m.buf.Len()
}

// Run drains the buffer until ctx is done, then makes a final bounded
// attempt to flush what is left.
func (m *Mirror) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
			m.flush(drainCtx)
			cancel()
			return nil
		case <-ticker.C:
			m.flush(ctx)
		case <-m.wake:
			m.flush(ctx)
		}
	}
}

// flush publishes batches until the buffer is empty or a publish fails.
func (m *Mirror) flush(ctx context.Context) {
	for {
		batch := m.buf.PopBatch(m.batchSize)
		if len(batch) == 0 {
			return
		}
		if err := m.publisher.Publish(ctx, batch); err != nil {
			m.buf.Unshift(batch)
			m.logger.WarnContext(ctx, "audit mirror publish failed",
				"batch_size", len(batch),
				"pending", m.buf.Len(),
				"error", err,
			)
			if m.metrics != nil {
				m.metrics.Failures.Inc()
			}
			return
		}
		if m.metrics != nil {
			m.metrics.Published.Add(float64(len(batch)))
		}
	}
}
