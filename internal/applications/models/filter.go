package models

import id "portal/pkg/domain"

// Filter narrows application listings. Zero fields match everything.
type Filter struct {
	ApplicantID id.AccountID
	Status      Status
	Service     ServiceName
}

// Matches applies the filter to a single application.
func (f Filter) Matches(a *Application) bool {
	if !f.ApplicantID.IsNil() && a.ApplicantID != f.ApplicantID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Service != "" && a.ServiceName != f.Service {
		return false
	}
	return true
}
