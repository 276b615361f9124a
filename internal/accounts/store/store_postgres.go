package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"portal/internal/accounts/models"
	"portal/internal/platform/postgres"
	id "portal/pkg/domain"
	"portal/pkg/platform/sentinel"
)

// PostgresStore persists accounts in the accounts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, kind, display_name, email, phone, national_id, password_hash, role,
	email_verified_at, phone_verified_at, created_at`

func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(account.ID), string(account.Kind), account.DisplayName,
		models.NormalizeEmail(account.Email), account.Phone, nullString(account.NationalID),
		account.PasswordHash, nullString(string(account.Role)),
		account.EmailVerifiedAt, account.PhoneVerifiedAt, account.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, uuid.UUID(accountID))
	return scanAccount(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = $1`, models.NormalizeEmail(email))
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		a          models.Account
		rawID      uuid.UUID
		kind       string
		nationalID sql.NullString
		role       sql.NullString
		emailAt    sql.NullTime
		phoneAt    sql.NullTime
	)
	err := row.Scan(&rawID, &kind, &a.DisplayName, &a.Email, &a.Phone, &nationalID,
		&a.PasswordHash, &role, &emailAt, &phoneAt, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.ID = id.AccountID(rawID)
	a.Kind = models.Kind(kind)
	a.NationalID = nationalID.String
	a.Role = models.Role(role.String)
	if emailAt.Valid {
		a.EmailVerifiedAt = &emailAt.Time
	}
	if phoneAt.Valid {
		a.PhoneVerifiedAt = &phoneAt.Time
	}
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
