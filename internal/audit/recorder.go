// Package audit records the application status trail.
package audit

import (
	"context"
	"log/slog"

	auditmetrics "portal/internal/audit/metrics"
	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
	"portal/pkg/requestcontext"
)

// Store persists entries. Implementations also enqueue the entry for the
// outbox relay when they support one.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByApplication(ctx context.Context, applicationID id.ApplicationID) ([]Entry, error)
}

// Recorder appends trail entries. Failures are logged and counted but never
// returned: the status change they describe is already committed.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *auditmetrics.Metrics
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *auditmetrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record fills id, timestamp and request id when missing, then appends.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if entry.ID.IsNil() {
		entry.ID = id.NewAuditEntryID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = requestcontext.Now(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
	if err := r.store.Append(ctx, entry); err != nil {
		r.metrics.IncrementRecordFailures()
		r.logger.ErrorContext(ctx, "failed to record audit entry",
			"error", err,
			"application_id", entry.ApplicationID,
			"actor_id", entry.ActorID,
			"action", entry.Action,
			"prior_status", entry.PriorStatus,
			"new_status", entry.NewStatus,
			"request_id", entry.RequestID,
		)
		return
	}
	r.metrics.IncrementRecorded(string(entry.Action))
	r.logger.InfoContext(ctx, "application status changed",
		"log_type", "audit",
		"application_id", entry.ApplicationID,
		"actor_id", entry.ActorID,
		"actor_role", entry.ActorRole,
		"action", entry.Action,
		"prior_status", entry.PriorStatus,
		"new_status", entry.NewStatus,
		"request_id", entry.RequestID,
	)
}

// ListByApplication returns the application's trail, oldest first.
func (r *Recorder) ListByApplication(ctx context.Context, applicationID id.ApplicationID) ([]Entry, error) {
	entries, err := r.store.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load audit history")
	}
	return entries, nil
}
