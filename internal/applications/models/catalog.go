package models

import (
	"slices"
	"strings"

	dErrors "portal/pkg/domain-errors"
)

// ServiceName identifies a catalog service.
type ServiceName string

const (
	ServiceCityPass          ServiceName = "city_pass"
	ServicePublicServantPass ServiceName = "public_servant_pass"
	ServiceResidencePermit   ServiceName = "residence_permit"
	ServiceEventPermit       ServiceName = "event_permit"
	ServiceDocumentRequest   ServiceName = "document_request"
)

// FieldEmployeeID is the Public Servant Pass form field that must be unique
// across active applications.
const FieldEmployeeID = "employeeId"

// CatalogEntry describes how a service is reviewed.
type CatalogEntry struct {
	Name            ServiceName `json:"name"`
	Title           string      `json:"title"`
	Prefix          string      `json:"prefix"`
	IssuesReference bool        `json:"issues_reference"`
	// RequiredFields must be present as non-empty strings in the form data.
	RequiredFields []string `json:"required_fields,omitempty"`
	// UniqueFields may be held by at most one active application of this service.
	UniqueFields []string `json:"unique_fields,omitempty"`
}

var catalog = map[ServiceName]CatalogEntry{
	ServiceCityPass: {
		Name:            ServiceCityPass,
		Title:           "City Pass",
		Prefix:          "CP",
		IssuesReference: true,
	},
	ServicePublicServantPass: {
		Name:            ServicePublicServantPass,
		Title:           "Public Servant Pass",
		Prefix:          "PSP",
		IssuesReference: true,
		RequiredFields:  []string{FieldEmployeeID},
		UniqueFields:    []string{FieldEmployeeID},
	},
	ServiceResidencePermit: {
		Name:            ServiceResidencePermit,
		Title:           "Residence Permit",
		Prefix:          "RP",
		IssuesReference: true,
	},
	ServiceEventPermit: {
		Name:            ServiceEventPermit,
		Title:           "Event Permit",
		Prefix:          "EVP",
		IssuesReference: true,
	},
	ServiceDocumentRequest: {
		Name:   ServiceDocumentRequest,
		Title:  "Document Request",
		Prefix: "DR",
	},
}

// LookupService resolves a catalog entry. Unknown names are invalid input.
func LookupService(name string) (CatalogEntry, error) {
	entry, ok := catalog[ServiceName(strings.TrimSpace(name))]
	if !ok {
		return CatalogEntry{}, dErrors.New(dErrors.CodeInvalidInput, "unknown service: "+name)
	}
	return entry, nil
}

// Catalog returns every entry ordered by name.
func Catalog() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(catalog))
	for _, e := range catalog {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b CatalogEntry) int {
		return strings.Compare(string(a.Name), string(b.Name))
	})
	return entries
}

// CanonicalValue is the stored and compared form of a unique field value.
// Employee ids are matched regardless of surrounding space or letter case.
func CanonicalValue(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// canonicalize rewrites the service's unique string fields in form.
func (e CatalogEntry) canonicalize(form map[string]any) {
	for _, field := range e.UniqueFields {
		if v, ok := form[field].(string); ok {
			form[field] = CanonicalValue(v)
		}
	}
}

// ValidateForm checks required fields for the service.
func (e CatalogEntry) ValidateForm(form map[string]any) error {
	for _, field := range e.RequiredFields {
		v, ok := form[field].(string)
		if !ok || strings.TrimSpace(v) == "" {
			return dErrors.New(dErrors.CodeValidation, e.Title+" requires "+field)
		}
	}
	return nil
}

func (n ServiceName) String() string { return string(n) }
