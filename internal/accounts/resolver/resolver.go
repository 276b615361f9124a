// Package resolver derives an account's effective administrator role.
package resolver

import (
	"portal/internal/accounts/models"
	dErrors "portal/pkg/domain-errors"
)

// Resolve returns the effective role for an account. Only the stored Role
// field is consulted. Administrators with an unknown or empty role resolve to
// base_admin; applicants resolve to RoleNone.
func Resolve(account *models.Account) models.Role {
	if account == nil || !account.IsAdministrator() {
		return models.RoleNone
	}
	if role, ok := models.ParseRole(string(account.Role)); ok {
		return role
	}
	return models.RoleBase
}

// ResolveAdministrator is Resolve for admin-only operations: non-administrator
// accounts are refused with Forbidden.
func ResolveAdministrator(account *models.Account) (models.Role, error) {
	role := Resolve(account)
	if role == models.RoleNone {
		return models.RoleNone, dErrors.New(dErrors.CodeForbidden, "administrator account required")
	}
	return role, nil
}
