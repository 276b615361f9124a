package counter

import (
	"context"
	"log/slog"
	"time"

	"portal/internal/ratelimit/models"
	"portal/pkg/platform/circuit"
)

// Store is implemented by every counter backend.
type Store interface {
	Increment(ctx context.Context, key models.Key, ttl time.Duration) (models.Counter, error)
	Get(ctx context.Context, key models.Key) (models.Counter, error)
	Reset(ctx context.Context, key models.Key) error
}

// Resilient tries the primary store first and answers from the in-memory
// fallback while the breaker is open. Limits keep holding per instance
// during a Redis outage instead of failing open.
type Resilient struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
	gauge    DegradedGauge
}

// DegradedGauge is told when answers switch to or from the fallback.
type DegradedGauge interface {
	SetDegraded(degraded bool)
}

type ResilientOption func(*Resilient)

func WithDegradedGauge(g DegradedGauge) ResilientOption {
	return func(r *Resilient) {
		r.gauge = g
	}
}

func NewResilient(primary, fallback Store, breaker *circuit.Breaker, logger *slog.Logger, opts ...ResilientOption) *Resilient {
	r := &Resilient{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Degraded reports whether answers currently come from the fallback.
func (r *Resilient) Degraded() bool {
	return r.breaker.IsOpen()
}

func (r *Resilient) Increment(ctx context.Context, key models.Key, ttl time.Duration) (models.Counter, error) {
	c, err := r.primary.Increment(ctx, key, ttl)
	if r.usePrimary(ctx, err) {
		return c, nil
	}
	return r.fallback.Increment(ctx, key, ttl)
}

func (r *Resilient) Get(ctx context.Context, key models.Key) (models.Counter, error) {
	c, err := r.primary.Get(ctx, key)
	if r.usePrimary(ctx, err) {
		return c, nil
	}
	return r.fallback.Get(ctx, key)
}

func (r *Resilient) Reset(ctx context.Context, key models.Key) error {
	err := r.primary.Reset(ctx, key)
	// Clear both so a recovered primary and a stale fallback agree.
	fbErr := r.fallback.Reset(ctx, key)
	if r.usePrimary(ctx, err) {
		return nil
	}
	return fbErr
}

func (r *Resilient) usePrimary(ctx context.Context, err error) bool {
	if err != nil {
		_, change := r.breaker.RecordFailure()
		if change.Opened {
			r.setDegraded(true)
			r.logger.WarnContext(ctx, "rate limit store degraded, using in-memory fallback",
				"breaker", r.breaker.Name(),
				"error", err,
			)
		}
		return false
	}
	usePrimary, change := r.breaker.RecordSuccess()
	if change.Closed {
		r.setDegraded(false)
		r.logger.InfoContext(ctx, "rate limit store recovered", "breaker", r.breaker.Name())
	}
	return usePrimary
}

func (r *Resilient) setDegraded(degraded bool) {
	if r.gauge != nil {
		r.gauge.SetDegraded(degraded)
	}
}
