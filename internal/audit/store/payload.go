package store

import (
	"encoding/json"
	"fmt"

	"portal/internal/audit"
)

// outboxPayload is the JSON published to the audit topic.
type outboxPayload struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	ActorID       string `json:"actor_id"`
	ActorRole     string `json:"actor_role,omitempty"`
	Action        string `json:"action"`
	PriorStatus   string `json:"prior_status"`
	NewStatus     string `json:"new_status"`
	Note          string `json:"note,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	Timestamp     string `json:"timestamp"`
}

func marshalPayload(entry audit.Entry) ([]byte, error) {
	b, err := json.Marshal(outboxPayload{
		ID:            entry.ID.String(),
		ApplicationID: entry.ApplicationID.String(),
		ActorID:       entry.ActorID.String(),
		ActorRole:     string(entry.ActorRole),
		Action:        string(entry.Action),
		PriorStatus:   string(entry.PriorStatus),
		NewStatus:     string(entry.NewStatus),
		Note:          entry.Note,
		RequestID:     entry.RequestID,
		Timestamp:     entry.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000Z07:00"),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal audit payload: %w", err)
	}
	return b, nil
}
