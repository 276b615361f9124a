package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"portal/internal/ratelimit/metrics"
	"portal/internal/ratelimit/models"
	dErrors "portal/pkg/domain-errors"
)

// Store is the counter backend (Redis, in-memory, or the resilient pair).
type Store interface {
	Increment(ctx context.Context, key models.Key, ttl time.Duration) (models.Counter, error)
	Get(ctx context.Context, key models.Key) (models.Counter, error)
	Reset(ctx context.Context, key models.Key) error
}

// Service answers request-throttle and auth-attempt questions keyed by
// (action, caller). State lives in the store, never in process globals.
type Service struct {
	store       Store
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	window      time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAttemptPolicy sets how many failed attempts are tolerated per window.
func WithAttemptPolicy(maxAttempts int, window time.Duration) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if window > 0 {
			s.window = window
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("rate limit store is required")
	}
	svc := &Service{
		store:       store,
		logger:      slog.Default(),
		maxAttempts: 5,
		window:      15 * time.Minute,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Allow consumes one unit of the (action, caller) budget.
func (s *Service) Allow(ctx context.Context, action, caller string, limit int, window time.Duration) (models.Result, error) {
	c, err := s.store.Increment(ctx, models.NewKey(action, caller), window)
	if err != nil {
		return models.Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limiter unavailable")
	}
	res := models.Consumed(c, limit)
	if !res.Allowed {
		s.metrics.IncrementDenied(action)
	}
	return res, nil
}

// CheckAttempt reports whether the caller may attempt action, without
// consuming anything.
func (s *Service) CheckAttempt(ctx context.Context, action, caller string) (models.Result, error) {
	c, err := s.store.Get(ctx, models.NewKey(action, caller))
	if err != nil {
		return models.Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limiter unavailable")
	}
	res := models.Lockout(c, s.maxAttempts)
	if !res.Allowed {
		s.metrics.IncrementAuthLockouts()
		s.logger.WarnContext(ctx, "attempt refused: caller locked out",
			"log_type", "audit",
			"action", action,
			"retry_after_s", int(res.RetryAfter.Seconds()),
		)
	}
	return res, nil
}

// RecordFailure counts one failed attempt within the window.
func (s *Service) RecordFailure(ctx context.Context, action, caller string) error {
	if _, err := s.store.Increment(ctx, models.NewKey(action, caller), s.window); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limiter unavailable")
	}
	s.metrics.IncrementAuthFailures()
	return nil
}

// ClearFailures forgets failed attempts after a success.
func (s *Service) ClearFailures(ctx context.Context, action, caller string) error {
	if err := s.store.Reset(ctx, models.NewKey(action, caller)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limiter unavailable")
	}
	return nil
}
