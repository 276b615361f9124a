// Package limits decides whether an applicant may open a new application.
package limits

import (
	"context"
	"errors"

	"portal/internal/applications/models"
	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
	"portal/pkg/platform/sentinel"
)

// Store is the read-only view of applications the guard needs.
type Store interface {
	FindActive(ctx context.Context, applicantID id.AccountID, service models.ServiceName) (*models.Application, error)
	FindActiveByServiceField(ctx context.Context, service models.ServiceName, field, value string) (*models.Application, error)
}

// Decision is the guard's verdict. Existing is set when an active
// application of the applicant blocks intake.
type Decision struct {
	Allowed  bool
	Reason   string
	Existing *models.Application
}

// Guard enforces one active application per (applicant, service) and runs
// per-service uniqueness checks on form fields.
type Guard struct {
	store Store
}

func New(store Store) *Guard {
	return &Guard{store: store}
}

// CanApply is read-only. Any store failure denies with CodeUnavailable.
func (g *Guard) CanApply(ctx context.Context, applicantID id.AccountID, service models.CatalogEntry, form map[string]any) (Decision, error) {
	existing, err := g.store.FindActive(ctx, applicantID, service.Name)
	switch {
	case err == nil:
		return Decision{
			Reason:   "an active " + service.Title + " application already exists",
			Existing: existing,
		}, nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return Decision{Reason: "application limits unavailable"}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to check application limits")
	}

	for _, field := range service.UniqueFields {
		value, _ := form[field].(string)
		value = models.CanonicalValue(value)
		if value == "" {
			continue
		}
		holder, err := g.store.FindActiveByServiceField(ctx, service.Name, field, value)
		switch {
		case err == nil && holder.ApplicantID != applicantID:
			return Decision{Reason: field + " is already used by another active application"}, nil
		case err == nil:
			return Decision{Reason: "an active " + service.Title + " application already exists", Existing: holder}, nil
		case !errors.Is(err, sentinel.ErrNotFound):
			return Decision{Reason: "application limits unavailable"}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to check "+field)
		}
	}
	return Decision{Allowed: true}, nil
}

// BlockedError carries a guard refusal to the transport layer.
type BlockedError struct {
	Decision Decision
}

func (e *BlockedError) Error() string { return e.Decision.Reason }

// Err converts a refusal into a CodeConflict error wrapping *BlockedError.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return dErrors.Wrap(&BlockedError{Decision: d}, dErrors.CodeConflict, d.Reason)
}
