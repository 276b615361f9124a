package service

import (
	"context"
	"fmt"

	"portal/internal/accounts/models"
	dErrors "portal/pkg/domain-errors"
)

// DemoAccount is one seeded login.
type DemoAccount struct {
	Email string
	Kind  models.Kind
	Role  models.Role
}

// SeedDemo creates one applicant and one administrator per role, all sharing
// password. Accounts whose email is already registered are left untouched and
// omitted from the result. Meant for local development with in-memory stores.
func (s *Service) SeedDemo(ctx context.Context, password string) ([]DemoAccount, error) {
	var seeded []DemoAccount

	applicant, err := s.RegisterApplicant(ctx, "Demo Applicant", "applicant@portal.local", "+15550100", password)
	switch {
	case err == nil:
		seeded = append(seeded, DemoAccount{Email: applicant.Email, Kind: applicant.Kind})
	case !dErrors.HasCode(err, dErrors.CodeConflict):
		return nil, fmt.Errorf("seed applicant: %w", err)
	}

	for _, role := range []models.Role{models.RoleSuper, models.RoleBase, models.RoleApproving, models.RoleVetting} {
		admin, err := s.RegisterAdministrator(ctx, role, "Demo "+role.String(), role.String()+"@portal.local", password)
		switch {
		case err == nil:
			seeded = append(seeded, DemoAccount{Email: admin.Email, Kind: admin.Kind, Role: admin.Role})
		case !dErrors.HasCode(err, dErrors.CodeConflict):
			return nil, fmt.Errorf("seed %s: %w", role, err)
		}
	}
	return seeded, nil
}
