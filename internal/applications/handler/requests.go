package handler

import (
	"strings"

	"portal/internal/applications/models"
	"portal/internal/applications/service"
	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
)

// CreateApplicationRequest is the body of POST /applications.
type CreateApplicationRequest struct {
	ServiceName string         `json:"service_name" validate:"required,max=64"`
	FormData    map[string]any `json:"form_data"`
}

func (r *CreateApplicationRequest) Normalize() {
	r.ServiceName = strings.TrimSpace(r.ServiceName)
}

func (r *CreateApplicationRequest) Validate() error {
	_, err := models.LookupService(r.ServiceName)
	return err
}

// TransitionRequest is the body of admin actions and resubmission. Any other
// field, including a claimed role, is ignored.
type TransitionRequest struct {
	Note      string         `json:"note" validate:"max=2000"`
	ExtraData map[string]any `json:"extra_data"`
}

func (r *TransitionRequest) Normalize() {
	r.Note = strings.TrimSpace(r.Note)
}

func (r *TransitionRequest) Validate() error {
	for _, key := range []string{"actorId", "actorRole", "recordedAt"} {
		if _, ok := r.ExtraData[key]; ok {
			return dErrors.New(dErrors.CodeValidation, "extra_data may not set "+key)
		}
	}
	return nil
}

// BulkDeleteRequest is the body of DELETE /applications.
type BulkDeleteRequest struct {
	Scope       string `json:"scope" validate:"required,oneof=self by_applicant by_service all"`
	ApplicantID string `json:"applicant_id" validate:"omitempty,uuid"`
	ServiceName string `json:"service_name" validate:"max=64"`

	scope       service.DeleteScope
	applicantID id.AccountID
}

func (r *BulkDeleteRequest) Normalize() {
	r.Scope = strings.TrimSpace(r.Scope)
	r.ApplicantID = strings.TrimSpace(r.ApplicantID)
	r.ServiceName = strings.TrimSpace(r.ServiceName)
}

func (r *BulkDeleteRequest) Validate() error {
	scope, err := service.ParseDeleteScope(r.Scope)
	if err != nil {
		return err
	}
	r.scope = scope
	if r.ApplicantID != "" {
		applicantID, err := id.ParseAccountID(r.ApplicantID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "applicant_id must be a UUID")
		}
		r.applicantID = applicantID
	}
	return nil
}
