// Package sweeper periodically expires lapsed invite codes.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultInterval = 5 * time.Minute
	defaultLeaseTTL = time.Minute
)

type Expirer interface {
	MarkExpiredCodes(ctx context.Context, now time.Time) (int, error)
}

// Lease coordinates sweeps across instances.
type Lease interface {
	TryAcquire(ctx context.Context, ttl time.Duration) (bool, error)
}

type Sweeper struct {
	expirer  Expirer
	lease    Lease
	leaseTTL time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithLease makes every tick contend for lease. Without one, every instance
// sweeps on every tick.
func WithLease(lease Lease, ttl time.Duration) Option {
	return func(s *Sweeper) {
		s.lease = lease
		if ttl > 0 {
			s.leaseTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

func New(expirer Expirer, interval time.Duration, opts ...Option) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	s := &Sweeper{
		expirer:  expirer,
		interval: interval,
		leaseTTL: defaultLeaseTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. It reports whether this instance held the lease and
// how many codes it expired. Failures are logged.
func (s *Sweeper) Sweep(ctx context.Context) (bool, int) {
	if s.lease != nil {
		acquired, err := s.lease.TryAcquire(ctx, s.leaseTTL)
		if err != nil {
			s.logger.WarnContext(ctx, "invite sweep lease unavailable, skipping tick", "error", err)
			return false, 0
		}
		if !acquired {
			s.logger.DebugContext(ctx, "invite sweep lease held elsewhere")
			return false, 0
		}
	}

	n, err := s.expirer.MarkExpiredCodes(ctx, s.now().UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "invite sweep failed", "error", err)
		return true, 0
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "invite sweep expired codes", "count", n)
	}
	return true, n
}
