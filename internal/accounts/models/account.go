package models

import (
	"net/mail"
	"strings"
	"time"

	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
)

// Kind separates citizens from staff.
type Kind string

const (
	KindApplicant     Kind = "applicant"
	KindAdministrator Kind = "administrator"
)

// Role is the administrator permission level. Applicants have RoleNone.
type Role string

const (
	RoleNone      Role = ""
	RoleBase      Role = "base_admin"
	RoleSuper     Role = "super_admin"
	RoleApproving Role = "approving_admin"
	RoleVetting   Role = "vetting_admin"
)

// ParseRole accepts only the four administrator roles.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleBase, RoleSuper, RoleApproving, RoleVetting:
		return r, true
	}
	return RoleNone, false
}

func (r Role) String() string { return string(r) }

// Account is an applicant or administrator.
//
// Invariants:
//   - Email is a valid address, stored lower-cased, unique across accounts
//   - Administrators carry a Role; applicants never do
//   - Verification timestamps are set at most once
type Account struct {
	ID              id.AccountID `json:"id"`
	Kind            Kind         `json:"kind"`
	DisplayName     string       `json:"display_name"`
	Email           string       `json:"email"`
	Phone           string       `json:"phone,omitempty"`
	NationalID      string       `json:"-"`
	PasswordHash    string       `json:"-"`
	Role            Role         `json:"role,omitempty"`
	EmailVerifiedAt *time.Time   `json:"email_verified_at,omitempty"`
	PhoneVerifiedAt *time.Time   `json:"phone_verified_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

func (a *Account) IsAdministrator() bool {
	return a.Kind == KindAdministrator
}

func (a *Account) EmailVerified() bool { return a.EmailVerifiedAt != nil }
func (a *Account) PhoneVerified() bool { return a.PhoneVerifiedAt != nil }

// MarkEmailVerified records verification once; later calls keep the first timestamp.
func (a *Account) MarkEmailVerified(now time.Time) {
	if a.EmailVerifiedAt == nil {
		a.EmailVerifiedAt = &now
	}
}

func (a *Account) MarkPhoneVerified(now time.Time) {
	if a.PhoneVerifiedAt == nil {
		a.PhoneVerifiedAt = &now
	}
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NewApplicant(accountID id.AccountID, displayName, email, phone, passwordHash string, now time.Time) (*Account, error) {
	return newAccount(accountID, KindApplicant, RoleNone, displayName, email, phone, passwordHash, now)
}

func NewAdministrator(accountID id.AccountID, role Role, displayName, email, passwordHash string, now time.Time) (*Account, error) {
	if _, ok := ParseRole(string(role)); !ok {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "administrator role is invalid")
	}
	return newAccount(accountID, KindAdministrator, role, displayName, email, "", passwordHash, now)
}

func newAccount(accountID id.AccountID, kind Kind, role Role, displayName, email, phone, passwordHash string, now time.Time) (*Account, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account id cannot be nil")
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" || len(displayName) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "display name must be 1-128 characters")
	}
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email is invalid")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash cannot be empty")
	}
	return &Account{
		ID:           accountID,
		Kind:         kind,
		DisplayName:  displayName,
		Email:        email,
		Phone:        strings.TrimSpace(phone),
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
	}, nil
}
