package models

import (
	"maps"
	"time"

	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
)

// Application is a citizen's request for a catalog service.
//
// Invariants:
//   - ApplicantID is immutable after construction
//   - ReferenceNumber is set only once the application reaches completed,
//     and only for services whose catalog entry issues one; it is never reassigned
//   - Status changes only through CanTransition + ApplyTransition
//   - Version increases by one on every stored mutation
type Application struct {
	ID              id.ApplicationID `json:"id"`
	ApplicantID     id.AccountID     `json:"applicant_id"`
	ServiceName     ServiceName      `json:"service_name"`
	Status          Status           `json:"status"`
	ServiceData     map[string]any   `json:"service_data"`
	ReferenceNumber string           `json:"reference_number,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	LastUpdatedBy   id.AccountID     `json:"last_updated_by"`
	LastUpdatedAt   time.Time        `json:"last_updated_at"`
	Version         int64            `json:"version"`
}

// Change is a requested status change.
type Change struct {
	Target    Status
	Actor     Actor
	Note      string
	ExtraData map[string]any
	// ReferenceNumber is attached on the approval edge when the service issues one.
	ReferenceNumber string
}

// NewApplication builds a pending application from intake form data.
func NewApplication(applicationID id.ApplicationID, applicantID id.AccountID, service CatalogEntry, form map[string]any, now time.Time) (*Application, error) {
	if applicantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "applicant id is required")
	}
	if service.Name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "service is required")
	}
	if err := service.ValidateForm(form); err != nil {
		return nil, err
	}
	data := cloneMap(form)
	if data == nil {
		data = map[string]any{}
	}
	service.canonicalize(data)
	return &Application{
		ID:            applicationID,
		ApplicantID:   applicantID,
		ServiceName:   service.Name,
		Status:        StatusPending,
		ServiceData:   data,
		CreatedAt:     now,
		LastUpdatedBy: applicantID,
		LastUpdatedAt: now,
		Version:       1,
	}, nil
}

// CanTransition checks, in order: the target is a known status, the actor may
// perform the edge, and the current status admits it.
func (a *Application) CanTransition(target Status, actor Actor) error {
	rule, ok := RuleFor(target)
	if !ok {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown target status: "+string(target))
	}
	if !rule.Permits(actor, a.ApplicantID) {
		if rule.OwnerOnly {
			return dErrors.New(dErrors.CodeForbidden, "only the applicant may "+string(rule.Action)+" this application")
		}
		return dErrors.New(dErrors.CodeForbidden, "role "+roleLabel(actor)+" may not "+string(rule.Action)+" applications")
	}
	if !rule.Admits(a.Status) {
		return dErrors.New(dErrors.CodeInvalidTransition, "cannot move application from "+string(a.Status)+" to "+string(target))
	}
	return nil
}

// RequiresReference reports whether moving to target must attach a reference number.
func (a *Application) RequiresReference(target Status) bool {
	if target != StatusCompleted || a.ReferenceNumber != "" {
		return false
	}
	entry, ok := catalog[a.ServiceName]
	return ok && entry.IssuesReference
}

// ApplyTransition applies a change validated by CanTransition. The edge's
// sub-record is replaced with the extra data plus actor metadata.
func (a *Application) ApplyTransition(change Change, now time.Time) {
	rule := transitions[change.Target]

	record := cloneMap(change.ExtraData)
	if record == nil {
		record = map[string]any{}
	}
	if change.Note != "" {
		record["note"] = change.Note
	}
	record["actorId"] = change.Actor.ID.String()
	if change.Actor.Role != "" {
		record["actorRole"] = string(change.Actor.Role)
	}
	record["recordedAt"] = now.UTC().Format(time.RFC3339)

	if a.ServiceData == nil {
		a.ServiceData = map[string]any{}
	}
	a.ServiceData[rule.SubRecord] = record
	a.Status = change.Target
	if change.ReferenceNumber != "" && a.RequiresReference(change.Target) {
		a.ReferenceNumber = change.ReferenceNumber
	}
	a.LastUpdatedBy = change.Actor.ID
	a.LastUpdatedAt = now
}

// ReferenceConsistent reports whether the reference-number invariant holds.
func (a *Application) ReferenceConsistent() bool {
	if a.ReferenceNumber == "" {
		entry, ok := catalog[a.ServiceName]
		return a.Status != StatusCompleted || (ok && !entry.IssuesReference)
	}
	return a.Status == StatusCompleted
}

// Clone returns a deep copy so stores never hand out shared maps.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	c.ServiceData = cloneMap(a.ServiceData)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	default:
		return v
	}
}

func roleLabel(actor Actor) string {
	if actor.Role == "" {
		return "applicant"
	}
	return string(actor.Role)
}
