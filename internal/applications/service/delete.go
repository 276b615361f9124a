package service

import (
	"context"
	"errors"

	accounts "portal/internal/accounts/models"
	"portal/internal/accounts/resolver"
	"portal/internal/applications/models"
	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
	"portal/pkg/platform/sentinel"
	"portal/pkg/requestcontext"
)

// DeleteScope selects the rows a bulk delete removes.
type DeleteScope string

const (
	ScopeSelf        DeleteScope = "self"
	ScopeByApplicant DeleteScope = "by_applicant"
	ScopeByService   DeleteScope = "by_service"
	ScopeAll         DeleteScope = "all"
)

func ParseDeleteScope(s string) (DeleteScope, error) {
	switch scope := DeleteScope(s); scope {
	case ScopeSelf, ScopeByApplicant, ScopeByService, ScopeAll:
		return scope, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown delete scope: "+s)
}

type BulkDeleteRequest struct {
	ActorID     id.AccountID
	Scope       DeleteScope
	ApplicantID id.AccountID
	ServiceName string
}

type BulkDeleteResult struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// BulkDelete removes the applications in scope one by one. Scopes other than
// self require super_admin or base_admin. Audit entries are kept.
func (s *Service) BulkDelete(ctx context.Context, req BulkDeleteRequest) (*BulkDeleteResult, error) {
	account, err := s.loadActor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	filter, err := deleteFilter(account, req)
	if err != nil {
		return nil, err
	}

	apps, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, translateStoreErr(err, "list applications")
	}
	result := &BulkDeleteResult{}
	for _, app := range apps {
		err := s.store.Delete(ctx, app.ID)
		switch {
		case err == nil:
			result.Deleted++
		case errors.Is(err, sentinel.ErrNotFound):
			// Removed concurrently; nothing left to count.
		default:
			result.Failed++
			s.logger.WarnContext(ctx, "failed to delete application",
				"application_id", app.ID,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
	}

	s.metrics.AddDeleted(result.Deleted)
	s.logger.InfoContext(ctx, "applications bulk deleted",
		"log_type", "audit",
		"user_id", account.ID,
		"scope", req.Scope,
		"deleted", result.Deleted,
		"failed", result.Failed,
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

func deleteFilter(account *accounts.Account, req BulkDeleteRequest) (models.Filter, error) {
	if req.Scope == ScopeSelf {
		return models.Filter{ApplicantID: account.ID}, nil
	}
	role := resolver.Resolve(account)
	if role != accounts.RoleSuper && role != accounts.RoleBase {
		return models.Filter{}, dErrors.New(dErrors.CodeForbidden, "scope requires super_admin or base_admin")
	}
	switch req.Scope {
	case ScopeByApplicant:
		if req.ApplicantID.IsNil() {
			return models.Filter{}, dErrors.New(dErrors.CodeValidation, "applicant_id is required for by_applicant")
		}
		return models.Filter{ApplicantID: req.ApplicantID}, nil
	case ScopeByService:
		entry, err := models.LookupService(req.ServiceName)
		if err != nil {
			return models.Filter{}, err
		}
		return models.Filter{Service: entry.Name}, nil
	case ScopeAll:
		return models.Filter{}, nil
	}
	return models.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "unknown delete scope: "+string(req.Scope))
}
