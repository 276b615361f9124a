package models

import (
	"slices"

	accounts "portal/internal/accounts/models"
	id "portal/pkg/domain"
)

// Action names a workflow edge.
type Action string

const (
	ActionVet      Action = "vet"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionResubmit Action = "resubmit"
)

// Sub-record keys written into ServiceData by each edge.
const (
	SubRecordVetting      = "vettingInfo"
	SubRecordApproval     = "approvalInfo"
	SubRecordRejection    = "rejectionInfo"
	SubRecordResubmission = "resubmissionInfo"
)

// Actor is the authenticated caller performing a transition. Role is
// resolved server-side and is RoleNone for applicants.
type Actor struct {
	ID   id.AccountID
	Role accounts.Role
}

// TransitionRule is one row of the workflow table, keyed by target status.
type TransitionRule struct {
	Action    Action
	Target    Status
	From      []Status
	Roles     []accounts.Role
	OwnerOnly bool
	SubRecord string
}

// The workflow is closed: any (current, target) pair not admitted here is an
// invalid transition.
var transitions = map[Status]TransitionRule{
	StatusInProgress: {
		Action:    ActionVet,
		Target:    StatusInProgress,
		From:      []Status{StatusPending},
		Roles:     []accounts.Role{accounts.RoleSuper, accounts.RoleVetting, accounts.RoleBase},
		SubRecord: SubRecordVetting,
	},
	StatusCompleted: {
		Action:    ActionApprove,
		Target:    StatusCompleted,
		From:      []Status{StatusInProgress},
		Roles:     []accounts.Role{accounts.RoleSuper, accounts.RoleApproving, accounts.RoleBase},
		SubRecord: SubRecordApproval,
	},
	StatusRejected: {
		Action:    ActionReject,
		Target:    StatusRejected,
		From:      []Status{StatusPending, StatusInProgress},
		Roles:     []accounts.Role{accounts.RoleSuper, accounts.RoleApproving, accounts.RoleVetting, accounts.RoleBase},
		SubRecord: SubRecordRejection,
	},
	StatusPending: {
		Action:    ActionResubmit,
		Target:    StatusPending,
		From:      []Status{StatusRejected},
		OwnerOnly: true,
		SubRecord: SubRecordResubmission,
	},
}

// RuleFor returns the rule for moving an application into target.
func RuleFor(target Status) (TransitionRule, bool) {
	rule, ok := transitions[target]
	return rule, ok
}

// Permits reports whether actor may perform this edge on an application owned by owner.
func (r TransitionRule) Permits(actor Actor, owner id.AccountID) bool {
	if r.OwnerOnly {
		return actor.Role == accounts.RoleNone && actor.ID == owner
	}
	return slices.Contains(r.Roles, actor.Role)
}

// Admits reports whether the edge may start from current.
func (r TransitionRule) Admits(current Status) bool {
	return slices.Contains(r.From, current)
}

// ActionForTarget maps a target status to its action name, or "" when unknown.
func ActionForTarget(target Status) Action {
	return transitions[target].Action
}
