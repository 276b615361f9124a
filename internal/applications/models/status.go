package models

import (
	"strings"

	dErrors "portal/pkg/domain-errors"
)

// Status is the lifecycle state of an application.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// ParseStatus accepts only the four lifecycle states.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusPending, StatusInProgress, StatusCompleted, StatusRejected:
		return st, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown application status: "+s)
}

// IsActive reports whether an application in this state blocks a new
// application for the same service.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusInProgress || s == StatusCompleted
}

// IsTerminal reports whether administrators can no longer move the application.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

func (s Status) String() string { return string(s) }

// ActiveStatuses lists the states counted by the one-active-application rule.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted}
}
