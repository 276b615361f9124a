package handler

import (
	"time"

	"portal/internal/applications/models"
	"portal/internal/applications/service"
	"portal/internal/audit"
)

// ApplicationResponse is the JSON shape of an application.
type ApplicationResponse struct {
	ID              string         `json:"id"`
	ApplicantID     string         `json:"applicant_id"`
	ServiceName     string         `json:"service_name"`
	Status          string         `json:"status"`
	ServiceData     map[string]any `json:"service_data"`
	ReferenceNumber string         `json:"reference_number,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	LastUpdatedBy   string         `json:"last_updated_by"`
	LastUpdatedAt   time.Time      `json:"last_updated_at"`
}

func toApplicationResponse(app *models.Application) *ApplicationResponse {
	if app == nil {
		return nil
	}
	data := app.ServiceData
	if data == nil {
		data = map[string]any{}
	}
	return &ApplicationResponse{
		ID:              app.ID.String(),
		ApplicantID:     app.ApplicantID.String(),
		ServiceName:     string(app.ServiceName),
		Status:          string(app.Status),
		ServiceData:     data,
		ReferenceNumber: app.ReferenceNumber,
		CreatedAt:       app.CreatedAt,
		LastUpdatedBy:   app.LastUpdatedBy.String(),
		LastUpdatedAt:   app.LastUpdatedAt,
	}
}

type ApplicationListResponse struct {
	Applications []*ApplicationResponse `json:"applications"`
}

func toListResponse(apps []*models.Application) *ApplicationListResponse {
	out := make([]*ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, toApplicationResponse(app))
	}
	return &ApplicationListResponse{Applications: out}
}

// HistoryEntryResponse is one audit entry in the detail view.
type HistoryEntryResponse struct {
	ActorID     string    `json:"actor_id"`
	ActorRole   string    `json:"actor_role,omitempty"`
	Action      string    `json:"action"`
	PriorStatus string    `json:"prior_status"`
	NewStatus   string    `json:"new_status"`
	Note        string    `json:"note,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type DetailResponse struct {
	Application *ApplicationResponse   `json:"application"`
	History     []HistoryEntryResponse `json:"history"`
}

func toDetailResponse(d *service.Detail) *DetailResponse {
	history := make([]HistoryEntryResponse, 0, len(d.History))
	for _, e := range d.History {
		history = append(history, toHistoryEntry(e))
	}
	return &DetailResponse{Application: toApplicationResponse(d.Application), History: history}
}

func toHistoryEntry(e audit.Entry) HistoryEntryResponse {
	return HistoryEntryResponse{
		ActorID:     e.ActorID.String(),
		ActorRole:   string(e.ActorRole),
		Action:      string(e.Action),
		PriorStatus: string(e.PriorStatus),
		NewStatus:   string(e.NewStatus),
		Note:        e.Note,
		Timestamp:   e.CreatedAt,
	}
}

// ConflictResponse is the 409 body for a blocked submission.
type ConflictResponse struct {
	Error               string               `json:"error"`
	Description         string               `json:"error_description"`
	ExistingApplication *ApplicationResponse `json:"existing_application,omitempty"`
}

type BulkDeleteResponse struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

type CatalogResponse struct {
	Services []models.CatalogEntry `json:"services"`
}
