package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"portal/internal/accounts/resolver"
	"portal/internal/applications/models"
	"portal/internal/applications/store"
	"portal/internal/audit"
	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
	"portal/pkg/requestcontext"
)

// TransitionRequest moves an application to Target on behalf of ActorID.
// The actor's role is always resolved from the stored account.
type TransitionRequest struct {
	ApplicationID id.ApplicationID
	Target        models.Status
	ActorID       id.AccountID
	Note          string
	ExtraData     map[string]any
}

// Resubmit returns the owner's rejected application to pending.
func (s *Service) Resubmit(ctx context.Context, applicationID id.ApplicationID, applicantID id.AccountID, note string, extra map[string]any) (*models.Application, error) {
	return s.Transition(ctx, TransitionRequest{
		ApplicationID: applicationID,
		Target:        models.StatusPending,
		ActorID:       applicantID,
		Note:          note,
		ExtraData:     extra,
	})
}

// Transition checks, in order: the application exists, the target is a
// known status, the actor's role may take the edge, and the current status
// admits it. The status change, sub-record and any reference number are
// written in one store transaction; the audit entry and notification follow
// the commit.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*models.Application, error) {
	ctx, span := s.tracer.Start(ctx, "applications.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("application_id", req.ApplicationID.String()),
		attribute.String("target_status", string(req.Target)),
	)
	start := time.Now()

	app, err := s.transition(ctx, req)
	if err != nil {
		code := dErrors.CodeOf(err)
		s.metrics.IncrementTransitionRejected(string(code))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		if code == dErrors.CodeUnavailable || code == dErrors.CodeInternal {
			s.logger.ErrorContext(ctx, "application transition failed",
				"application_id", req.ApplicationID,
				"target_status", req.Target,
				"user_id", req.ActorID,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		return nil, err
	}
	s.metrics.ObserveTransitionDuration(time.Since(start).Seconds())
	return app, nil
}

func (s *Service) transition(ctx context.Context, req TransitionRequest) (*models.Application, error) {
	account, err := s.loadActor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	actor := models.Actor{ID: account.ID, Role: resolver.Resolve(account)}
	now := requestcontext.Now(ctx)

	var (
		prior     models.Status
		reference string
		attempts  int
	)
	issue := func(txCtx context.Context, service models.ServiceName) (string, error) {
		for attempts < maxReferenceAttempts {
			attempts++
			candidate, err := s.issuer.Issue(service, now)
			if err != nil {
				return "", err
			}
			taken, err := s.store.ReferenceExists(txCtx, candidate)
			if err != nil {
				return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to check reference number")
			}
			if !taken {
				return candidate, nil
			}
			s.metrics.IncrementReferenceRetries()
		}
		return "", dErrors.New(dErrors.CodeUnavailable, "could not issue a unique reference number")
	}

	var updated *models.Application
	for {
		reference = ""
		updated, err = s.store.Execute(ctx, req.ApplicationID,
			func(app *models.Application) error {
				prior = app.Status
				return app.CanTransition(req.Target, actor)
			},
			func(txCtx context.Context, app *models.Application) error {
				if req.Target == models.StatusPending {
					if err := s.checkResubmission(txCtx, app); err != nil {
						return err
					}
				}
				if app.RequiresReference(req.Target) {
					ref, err := issue(txCtx, app.ServiceName)
					if err != nil {
						return err
					}
					reference = ref
				}
				app.ApplyTransition(models.Change{
					Target:          req.Target,
					Actor:           actor,
					Note:            req.Note,
					ExtraData:       req.ExtraData,
					ReferenceNumber: reference,
				}, now)
				return nil
			})
		if errors.Is(err, store.ErrReferenceTaken) && attempts < maxReferenceAttempts {
			s.metrics.IncrementReferenceRetries()
			continue
		}
		break
	}
	if err != nil {
		return nil, translateStoreErr(err, "update application")
	}

	action := models.ActionForTarget(req.Target)
	s.metrics.IncrementTransition(string(action))
	if reference != "" {
		s.metrics.IncrementReferenceIssued(string(updated.ServiceName))
	}
	s.record(ctx, audit.Entry{
		ApplicationID: updated.ID,
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
		Action:        action,
		PriorStatus:   prior,
		NewStatus:     updated.Status,
		Note:          req.Note,
		CreatedAt:     now,
	})
	s.notify(ctx, updated)
	return updated, nil
}

// checkResubmission runs the limits guard for a rejected application about
// to become active again. The rejected row itself never blocks.
func (s *Service) checkResubmission(ctx context.Context, app *models.Application) error {
	entry, err := models.LookupService(string(app.ServiceName))
	if err != nil {
		return err
	}
	return s.checkLimits(ctx, app.ApplicantID, entry, app.ServiceData)
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, entry)
}

// notify is best effort; failures are logged only.
func (s *Service) notify(ctx context.Context, app *models.Application) {
	if s.notifier == nil {
		return
	}
	recipient, err := s.accounts.Get(ctx, app.ApplicantID)
	if err == nil {
		err = s.notifier.StatusChanged(ctx, recipient, app)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "status change notification failed",
			"application_id", app.ID,
			"status", app.Status,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}
