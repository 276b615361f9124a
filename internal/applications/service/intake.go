package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"portal/internal/applications/models"
	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
	"portal/pkg/platform/sentinel"
	"portal/pkg/requestcontext"
)

// ApplyRequest is an applicant's submission.
type ApplyRequest struct {
	ApplicantID id.AccountID
	ServiceName string
	FormData    map[string]any
}

// Apply validates the submission, consults the limits guard and stores a
// new pending application. A blocked submission returns a Conflict whose
// chain carries *limits.BlockedError.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*models.Application, error) {
	ctx, span := s.tracer.Start(ctx, "applications.Apply")
	defer span.End()
	span.SetAttributes(attribute.String("service_name", req.ServiceName))

	app, err := s.apply(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.String("application_id", app.ID.String()))
	return app, nil
}

func (s *Service) apply(ctx context.Context, req ApplyRequest) (*models.Application, error) {
	applicant, err := s.loadActor(ctx, req.ApplicantID)
	if err != nil {
		return nil, err
	}
	if applicant.IsAdministrator() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only applicants can submit applications")
	}
	entry, err := models.LookupService(req.ServiceName)
	if err != nil {
		return nil, err
	}
	if err := entry.ValidateForm(req.FormData); err != nil {
		return nil, err
	}

	if err := s.checkLimits(ctx, applicant.ID, entry, req.FormData); err != nil {
		return nil, err
	}

	app, err := models.NewApplication(id.NewApplicationID(), applicant.ID, entry, req.FormData, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	if err := s.store.Create(ctx, app); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A concurrent submission won the unique index; report its row.
			if lerr := s.checkLimits(ctx, applicant.ID, entry, req.FormData); lerr != nil {
				return nil, lerr
			}
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "an active application for this service already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store application")
	}

	s.metrics.IncrementSubmitted(string(entry.Name))
	s.logger.InfoContext(ctx, "application submitted",
		"application_id", app.ID,
		"user_id", applicant.ID,
		"service_name", entry.Name,
		"request_id", requestcontext.RequestID(ctx),
	)
	return app, nil
}

func (s *Service) checkLimits(ctx context.Context, applicantID id.AccountID, entry models.CatalogEntry, form map[string]any) error {
	decision, err := s.guard.CanApply(ctx, applicantID, entry, form)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		s.metrics.IncrementIntakeBlocked(string(entry.Name))
		return decision.Err()
	}
	return nil
}
