package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"portal/internal/applications/limits"
	"portal/internal/applications/models"
	"portal/internal/applications/service"
	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
	"portal/pkg/platform/httputil"
	"portal/pkg/requestcontext"
)

// Service is the application workflow as used over HTTP.
type Service interface {
	Apply(ctx context.Context, req service.ApplyRequest) (*models.Application, error)
	Transition(ctx context.Context, req service.TransitionRequest) (*models.Application, error)
	Resubmit(ctx context.Context, applicationID id.ApplicationID, applicantID id.AccountID, note string, extra map[string]any) (*models.Application, error)
	ListMine(ctx context.Context, applicantID id.AccountID) ([]*models.Application, error)
	Queue(ctx context.Context, actorID id.AccountID, filter models.Filter) ([]*models.Application, error)
	Detail(ctx context.Context, actorID id.AccountID, applicationID id.ApplicationID) (*service.Detail, error)
	BulkDelete(ctx context.Context, req service.BulkDeleteRequest) (*service.BulkDeleteResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts unauthenticated routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/services", h.HandleCatalog)
}

// Register mounts the applicant routes. Callers wrap r with RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/applications", h.HandleCreate)
	r.Get("/applications", h.HandleListMine)
	r.Delete("/applications", h.HandleBulkDelete)
	r.Get("/applications/{id}", h.HandleDetail)
	r.Post("/applications/{id}/resubmit", h.HandleResubmit)
}

// RegisterAdmin mounts the review routes. Callers wrap r with RequireAuth
// and RequireAdministrator; per-edge role checks happen in the service.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/applications", h.HandleQueue)
	r.Post("/admin/applications/{id}/vet", h.transitionTo(models.StatusInProgress))
	r.Post("/admin/applications/{id}/approve", h.transitionTo(models.StatusCompleted))
	r.Post("/admin/applications/{id}/reject", h.transitionTo(models.StatusRejected))
}

func (h *Handler) HandleCatalog(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, CatalogResponse{Services: models.Catalog()})
}

// HandleCreate handles POST /applications.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateApplicationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	app, err := h.service.Apply(ctx, service.ApplyRequest{
		ApplicantID: requestcontext.AccountID(ctx),
		ServiceName: req.ServiceName,
		FormData:    req.FormData,
	})
	if err != nil {
		var blocked *limits.BlockedError
		if errors.As(err, &blocked) {
			httputil.WriteJSON(w, http.StatusConflict, ConflictResponse{
				Error:               string(dErrors.CodeConflict),
				Description:         blocked.Decision.Reason,
				ExistingApplication: toApplicationResponse(blocked.Decision.Existing),
			})
			return
		}
		h.writeError(ctx, w, "submit application", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toApplicationResponse(app))
}

// HandleListMine handles GET /applications.
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	apps, err := h.service.ListMine(ctx, requestcontext.AccountID(ctx))
	if err != nil {
		h.writeError(ctx, w, "list applications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(apps))
}

// HandleDetail handles GET /applications/{id}.
func (h *Handler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.Detail(ctx, requestcontext.AccountID(ctx), applicationID)
	if err != nil {
		h.writeError(ctx, w, "load application", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDetailResponse(detail))
}

// HandleResubmit handles POST /applications/{id}/resubmit.
func (h *Handler) HandleResubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}
	app, err := h.service.Resubmit(ctx, applicationID, requestcontext.AccountID(ctx), req.Note, req.ExtraData)
	if err != nil {
		var blocked *limits.BlockedError
		if errors.As(err, &blocked) {
			httputil.WriteJSON(w, http.StatusConflict, ConflictResponse{
				Error:               string(dErrors.CodeConflict),
				Description:         blocked.Decision.Reason,
				ExistingApplication: toApplicationResponse(blocked.Decision.Existing),
			})
			return
		}
		h.writeError(ctx, w, "resubmit application", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(app))
}

// HandleBulkDelete handles DELETE /applications.
func (h *Handler) HandleBulkDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BulkDeleteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.BulkDelete(ctx, service.BulkDeleteRequest{
		ActorID:     requestcontext.AccountID(ctx),
		Scope:       req.scope,
		ApplicantID: req.applicantID,
		ServiceName: req.ServiceName,
	})
	if err != nil {
		h.writeError(ctx, w, "bulk delete applications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BulkDeleteResponse{Deleted: res.Deleted, Failed: res.Failed})
}

// HandleQueue handles GET /admin/applications?status=&service=.
func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var filter models.Filter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Status = status
	}
	if raw := r.URL.Query().Get("service"); raw != "" {
		entry, err := models.LookupService(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Service = entry.Name
	}

	apps, err := h.service.Queue(ctx, requestcontext.AccountID(ctx), filter)
	if err != nil {
		h.writeError(ctx, w, "list review queue", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(apps))
}

func (h *Handler) transitionTo(target models.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		applicationID, ok := h.applicationID(w, r)
		if !ok {
			return
		}
		req, ok := h.decodeTransition(w, r)
		if !ok {
			return
		}
		app, err := h.service.Transition(ctx, service.TransitionRequest{
			ApplicationID: applicationID,
			Target:        target,
			ActorID:       requestcontext.AccountID(ctx),
			Note:          req.Note,
			ExtraData:     req.ExtraData,
		})
		if err != nil {
			h.writeError(ctx, w, string(models.ActionForTarget(target))+" application", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(app))
	}
}

// decodeTransition accepts an empty body as an empty request.
func (h *Handler) decodeTransition(w http.ResponseWriter, r *http.Request) (*TransitionRequest, bool) {
	if r.ContentLength == 0 {
		return &TransitionRequest{}, true
	}
	ctx := r.Context()
	return httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
}

func (h *Handler) applicationID(w http.ResponseWriter, r *http.Request) (id.ApplicationID, bool) {
	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "application id must be a UUID"))
		return id.ApplicationID{}, false
	}
	return applicationID, true
}

// writeError logs server-side failures before writing the mapped response.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUnavailable, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
