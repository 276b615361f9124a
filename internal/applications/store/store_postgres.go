package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"portal/internal/applications/models"
	"portal/internal/platform/postgres"
	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
	"portal/pkg/platform/sentinel"
	txcontext "portal/pkg/platform/tx"
)

const (
	activePerServiceIndex = "applications_active_per_service_idx"
	referenceNumberIndex  = "applications_reference_number_idx"

	defaultExecuteTimeout = 5 * time.Second
)

// PostgresStore persists applications in the applications table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const applicationColumns = `id, applicant_id, service_name, status, service_data, reference_number,
	created_at, last_updated_by, last_updated_at, version`

func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	data, err := json.Marshal(app.ServiceData)
	if err != nil {
		return fmt.Errorf("marshal service data: %w", err)
	}
	_, err = txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(app.ID), uuid.UUID(app.ApplicantID), string(app.ServiceName), string(app.Status),
		data, nullString(app.ReferenceNumber), app.CreatedAt,
		uuid.UUID(app.LastUpdatedBy), app.LastUpdatedAt, app.Version,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, uuid.UUID(applicationID))
	return scanApplication(row)
}

func (s *PostgresStore) FindActive(ctx context.Context, applicantID id.AccountID, service models.ServiceName) (*models.Application, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+applicationColumns+` FROM applications
		WHERE applicant_id = $1 AND service_name = $2
		  AND status IN ('pending', 'in_progress', 'completed')
		LIMIT 1`,
		uuid.UUID(applicantID), string(service))
	return scanApplication(row)
}

func (s *PostgresStore) FindActiveByServiceField(ctx context.Context, service models.ServiceName, field, value string) (*models.Application, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+applicationColumns+` FROM applications
		WHERE service_name = $1 AND upper(btrim(service_data ->> $2)) = $3
		  AND status IN ('pending', 'in_progress', 'completed')
		LIMIT 1`,
		string(service), field, models.CanonicalValue(value))
	return scanApplication(row)
}

func (s *PostgresStore) ListByApplicant(ctx context.Context, applicantID id.AccountID) ([]*models.Application, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT `+applicationColumns+` FROM applications
		WHERE applicant_id = $1
		ORDER BY created_at DESC, id DESC`,
		uuid.UUID(applicantID))
	if err != nil {
		return nil, fmt.Errorf("query applications by applicant: %w", err)
	}
	defer rows.Close()
	return scanApplications(rows)
}

// List returns applications matching filter, oldest first.
func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Application, error) {
	var (
		where []string
		args  []any
	)
	if !filter.ApplicantID.IsNil() {
		args = append(args, uuid.UUID(filter.ApplicantID))
		where = append(where, fmt.Sprintf("applicant_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Service != "" {
		args = append(args, string(filter.Service))
		where = append(where, fmt.Sprintf("service_name = $%d", len(args)))
	}
	query := `SELECT ` + applicationColumns + ` FROM applications`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()
	return scanApplications(rows)
}

func (s *PostgresStore) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM applications WHERE reference_number = $1)`, reference).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reference number: %w", err)
	}
	return exists, nil
}

// Execute locks the row with SELECT ... FOR UPDATE, runs validate then
// mutate inside the transaction, and writes the result conditioned on the
// status and version that were read. The transaction is carried in the
// context passed to mutate so store reads made there see the same snapshot.
func (s *PostgresStore) Execute(ctx context.Context, applicationID id.ApplicationID, validate func(*models.Application) error, mutate func(context.Context, *models.Application) error) (*models.Application, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultExecuteTimeout)
		defer cancel()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin application tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := scanApplication(tx.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, uuid.UUID(applicationID)))
	if err != nil {
		return nil, err
	}
	expectedStatus, expectedVersion := current.Status, current.Version
	if err := validate(current); err != nil {
		return nil, err
	}
	txCtx := txcontext.WithTx(ctx, tx)
	if err := mutate(txCtx, current); err != nil {
		return nil, err
	}

	data, err := json.Marshal(current.ServiceData)
	if err != nil {
		return nil, fmt.Errorf("marshal service data: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE applications
		SET status = $1, service_data = $2, reference_number = $3,
		    last_updated_by = $4, last_updated_at = $5, version = version + 1
		WHERE id = $6 AND status = $7 AND version = $8`,
		string(current.Status), data, nullString(current.ReferenceNumber),
		uuid.UUID(current.LastUpdatedBy), current.LastUpdatedAt,
		uuid.UUID(current.ID), string(expectedStatus), expectedVersion,
	)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err, referenceNumberIndex):
			return nil, ErrReferenceTaken
		case postgres.IsUniqueViolation(err, activePerServiceIndex):
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("update application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update application rows affected: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrStaleVersion
	}
	if err := tx.Commit(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "application update timed out")
		}
		return nil, fmt.Errorf("commit application tx: %w", err)
	}
	current.Version = expectedVersion + 1
	return current, nil
}

func (s *PostgresStore) Delete(ctx context.Context, applicationID id.ApplicationID) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx,
		`DELETE FROM applications WHERE id = $1`, uuid.UUID(applicationID))
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete application rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type applicationRow interface {
	Scan(dest ...any) error
}

func scanApplication(row applicationRow) (*models.Application, error) {
	var (
		app           models.Application
		rawID         uuid.UUID
		rawApplicant  uuid.UUID
		service       string
		status        string
		data          []byte
		reference     sql.NullString
		lastUpdatedBy uuid.NullUUID
	)
	err := row.Scan(&rawID, &rawApplicant, &service, &status, &data, &reference,
		&app.CreatedAt, &lastUpdatedBy, &app.LastUpdatedAt, &app.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan application: %w", err)
	}
	app.ID = id.ApplicationID(rawID)
	app.ApplicantID = id.AccountID(rawApplicant)
	app.ServiceName = models.ServiceName(service)
	app.Status = models.Status(status)
	app.ReferenceNumber = reference.String
	if lastUpdatedBy.Valid {
		app.LastUpdatedBy = id.AccountID(lastUpdatedBy.UUID)
	}
	app.ServiceData = map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &app.ServiceData); err != nil {
			return nil, fmt.Errorf("decode service data: %w", err)
		}
	}
	return &app, nil
}

func scanApplications(rows *sql.Rows) ([]*models.Application, error) {
	out := make([]*models.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
