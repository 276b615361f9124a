// Package service implements application intake, the status transition
// engine and the applicant and review-queue queries.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	accounts "portal/internal/accounts/models"
	"portal/internal/applications/limits"
	appmetrics "portal/internal/applications/metrics"
	"portal/internal/applications/models"
	"portal/internal/applications/store"
	"portal/internal/audit"
	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
	"portal/pkg/platform/sentinel"
)

// maxReferenceAttempts bounds reference candidates per transition, counting
// both pre-commit lookups and unique-index collisions at commit.
const maxReferenceAttempts = 5

type Store interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error)
	ListByApplicant(ctx context.Context, applicantID id.AccountID) ([]*models.Application, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Application, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	Execute(ctx context.Context, applicationID id.ApplicationID, validate func(*models.Application) error, mutate func(context.Context, *models.Application) error) (*models.Application, error)
	Delete(ctx context.Context, applicationID id.ApplicationID) error
}

// Accounts resolves the authenticated caller's stored account.
type Accounts interface {
	Get(ctx context.Context, accountID id.AccountID) (*accounts.Account, error)
}

type LimitsGuard interface {
	CanApply(ctx context.Context, applicantID id.AccountID, service models.CatalogEntry, form map[string]any) (limits.Decision, error)
}

type ReferenceIssuer interface {
	Issue(service models.ServiceName, now time.Time) (string, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
	ListByApplication(ctx context.Context, applicationID id.ApplicationID) ([]audit.Entry, error)
}

// Notifier tells the applicant about a committed status change.
type Notifier interface {
	StatusChanged(ctx context.Context, recipient *accounts.Account, app *models.Application) error
}

// Service orchestrates the application lifecycle.
type Service struct {
	store    Store
	accounts Accounts
	guard    LimitsGuard
	issuer   ReferenceIssuer
	audit    AuditRecorder
	notifier Notifier
	logger   *slog.Logger
	metrics  *appmetrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *appmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		s.audit = recorder
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(store Store, accounts Accounts, guard LimitsGuard, issuer ReferenceIssuer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		accounts: accounts,
		guard:    guard,
		issuer:   issuer,
		logger:   slog.Default(),
		tracer:   otel.Tracer("portal/applications"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) loadActor(ctx context.Context, accountID id.AccountID) (*accounts.Account, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "account not found")
		}
		return nil, err
	}
	return account, nil
}

// translateStoreErr maps store sentinels to domain errors. Domain errors
// raised by validate or mutate callbacks pass through unchanged.
func translateStoreErr(err error, action string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "application not found")
	case errors.Is(err, sentinel.ErrStaleVersion):
		return dErrors.Wrap(err, dErrors.CodeInvalidTransition, "application was changed by another request")
	case errors.Is(err, store.ErrReferenceTaken):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "could not issue a unique reference number")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "an active application for this service already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to "+action)
	}
}
