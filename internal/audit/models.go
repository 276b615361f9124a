package audit

import (
	"time"

	accounts "portal/internal/accounts/models"
	"portal/internal/applications/models"
	id "portal/pkg/domain"
)

// Entry records one status change of an application. Entries are
// append-only: never updated, never deleted.
type Entry struct {
	ID            id.AuditEntryID  `json:"id"`
	ApplicationID id.ApplicationID `json:"application_id"`
	ActorID       id.AccountID     `json:"actor_id"`
	// ActorRole is the role resolved when the action was taken; empty for applicants.
	ActorRole   accounts.Role `json:"actor_role,omitempty"`
	Action      models.Action `json:"action"`
	PriorStatus models.Status `json:"prior_status"`
	NewStatus   models.Status `json:"new_status"`
	Note        string        `json:"note,omitempty"`
	RequestID   string        `json:"request_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// OutboxRecord is an entry awaiting publication to Kafka.
type OutboxRecord struct {
	Seq     int64
	EntryID id.AuditEntryID
	// Key partitions records so one application's history stays ordered.
	Key     string
	Payload []byte
}
