package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"portal/internal/accounts/models"
	rlmodels "portal/internal/ratelimit/models"
	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
	"portal/pkg/email"
	"portal/pkg/platform/sentinel"
	"portal/pkg/requestcontext"
)

// Store persists accounts.
type Store interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
}

// TokenIssuer signs access tokens. Returns the token and its jti.
type TokenIssuer interface {
	GenerateAccessToken(accountID id.AccountID, expiresIn time.Duration) (string, string, error)
}

// AttemptLimiter tracks failed login attempts per caller.
type AttemptLimiter interface {
	CheckAttempt(ctx context.Context, action, caller string) (rlmodels.Result, error)
	RecordFailure(ctx context.Context, action, caller string) error
	ClearFailures(ctx context.Context, action, caller string) error
}

// LockedOutError carries the wait before the caller may retry.
type LockedOutError struct {
	RetryAfter time.Duration
}

func (e *LockedOutError) Error() string { return "login locked out" }

// LoginResult is returned on successful authentication.
type LoginResult struct {
	AccessToken string
	TokenID     string
	ExpiresIn   time.Duration
	Account     *models.Account
}

type Service struct {
	store      Store
	tokens     TokenIssuer
	limiter    AttemptLimiter
	logger     *slog.Logger
	tokenTTL   time.Duration
	bcryptCost int

	dummyOnce sync.Once
	dummyHash []byte
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAttemptLimiter(limiter AttemptLimiter) Option {
	return func(s *Service) {
		s.limiter = limiter
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithBcryptCost lowers the hashing cost in tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func New(store Store, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		store:      store,
		tokens:     tokens,
		logger:     slog.Default(),
		tokenTTL:   30 * time.Minute,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	return account, nil
}

// IsAdministrator reports whether the account is staff.
func (s *Service) IsAdministrator(ctx context.Context, accountID id.AccountID) (bool, error) {
	account, err := s.store.FindByID(ctx, accountID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapAccountErr(err)
	}
	return account.IsAdministrator(), nil
}

// RegisterApplicant hashes the password and stores a new applicant. A blank
// display name is derived from the email address.
func (s *Service) RegisterApplicant(ctx context.Context, displayName, address, phone, password string) (*models.Account, error) {
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = email.DisplayName(address)
	}
	account, err := models.NewApplicant(id.NewAccountID(), displayName, address, phone, hash, requestcontext.Now(ctx))
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, wrapAccountErr(err)
	}
	return account, nil
}

// RegisterAdministrator provisions a staff account.
func (s *Service) RegisterAdministrator(ctx context.Context, role models.Role, displayName, email, password string) (*models.Account, error) {
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}
	account, err := models.NewAdministrator(id.NewAccountID(), role, displayName, email, hash, requestcontext.Now(ctx))
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, wrapAccountErr(err)
	}
	return account, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	if len(password) < 8 || len(password) > 72 {
		return "", dErrors.New(dErrors.CodeValidation, "password must be 8-72 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	return string(hash), nil
}

func wrapAccountErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "account not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "email already registered")
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		return dErrors.Wrap(err, dErrors.CodeValidation, dErrors.MessageOf(err))
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "account store unavailable")
	}
}
