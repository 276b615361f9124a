package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	accounts "portal/internal/accounts/models"
	"portal/internal/applications/models"
	"portal/internal/audit"
	id "portal/pkg/domain"
	txcontext "portal/pkg/platform/tx"
)

// PostgresStore writes entries to audit_entries and, in the same
// transaction, a payload row to audit_outbox for the Kafka relay.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry audit.Entry) error {
	payload, err := marshalPayload(entry)
	if err != nil {
		return err
	}
	if tx, ok := txcontext.From(ctx); ok {
		return appendEntry(ctx, tx, entry, payload)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := appendEntry(ctx, tx, entry, payload); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit tx: %w", err)
	}
	return nil
}

func appendEntry(ctx context.Context, tx *sql.Tx, entry audit.Entry, payload []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_entries (id, application_id, actor_id, actor_role, action, prior_status, new_status, note, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(entry.ID), uuid.UUID(entry.ApplicationID), uuid.UUID(entry.ActorID),
		string(entry.ActorRole), string(entry.Action), string(entry.PriorStatus), string(entry.NewStatus),
		entry.Note, entry.RequestID, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_outbox (entry_id, payload, created_at)
		VALUES ($1, $2, $3)`,
		uuid.UUID(entry.ID), payload, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert audit outbox: %w", err)
	}
	return nil
}

// ListByApplication returns the application's trail, oldest first.
func (s *PostgresStore) ListByApplication(ctx context.Context, applicationID id.ApplicationID) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, application_id, actor_id, actor_role, action, prior_status, new_status, note, request_id, created_at
		FROM audit_entries
		WHERE application_id = $1
		ORDER BY created_at ASC, id ASC`,
		uuid.UUID(applicationID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]audit.Entry, 0)
	for rows.Next() {
		var (
			e                           audit.Entry
			rawID, rawApp, rawActor     uuid.UUID
			role, action, prior, status string
		)
		if err := rows.Scan(&rawID, &rawApp, &rawActor, &role, &action, &prior, &status, &e.Note, &e.RequestID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ID = id.AuditEntryID(rawID)
		e.ApplicationID = id.ApplicationID(rawApp)
		e.ActorID = id.AccountID(rawActor)
		e.ActorRole = accounts.Role(role)
		e.Action = models.Action(action)
		e.PriorStatus = models.Status(prior)
		e.NewStatus = models.Status(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// FetchUnpublished returns up to limit unpublished outbox rows in insert order.
func (s *PostgresStore) FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.entry_id, e.application_id, o.payload
		FROM audit_outbox o
		JOIN audit_entries e ON e.id = o.entry_id
		WHERE o.published_at IS NULL
		ORDER BY o.id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit outbox: %w", err)
	}
	defer rows.Close()

	out := make([]audit.OutboxRecord, 0, limit)
	for rows.Next() {
		var (
			rec            audit.OutboxRecord
			entryID, appID uuid.UUID
		)
		if err := rows.Scan(&rec.Seq, &entryID, &appID, &rec.Payload); err != nil {
			return nil, fmt.Errorf("scan audit outbox: %w", err)
		}
		rec.EntryID = id.AuditEntryID(entryID)
		rec.Key = appID.String()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit outbox: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, seqs []int64) error {
	if len(seqs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE audit_outbox SET published_at = now() WHERE id = ANY($1)`, pq.Array(seqs))
	if err != nil {
		return fmt.Errorf("mark audit outbox published: %w", err)
	}
	return nil
}
