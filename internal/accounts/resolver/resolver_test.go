package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/internal/accounts/models"
	dErrors "portal/pkg/domain-errors"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		account *models.Account
		want    models.Role
	}{
		{"nil account", nil, models.RoleNone},
		{"applicant", &models.Account{Kind: models.KindApplicant}, models.RoleNone},
		{"applicant with stray role", &models.Account{Kind: models.KindApplicant, Role: models.RoleSuper}, models.RoleNone},
		{"super admin", &models.Account{Kind: models.KindAdministrator, Role: models.RoleSuper}, models.RoleSuper},
		{"vetting admin", &models.Account{Kind: models.KindAdministrator, Role: models.RoleVetting}, models.RoleVetting},
		{"approving admin", &models.Account{Kind: models.KindAdministrator, Role: models.RoleApproving}, models.RoleApproving},
		{"empty role fails closed", &models.Account{Kind: models.KindAdministrator}, models.RoleBase},
		{"unknown role fails closed", &models.Account{Kind: models.KindAdministrator, Role: "root"}, models.RoleBase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.account))
		})
	}
}

func TestResolveAdministrator(t *testing.T) {
	_, err := ResolveAdministrator(&models.Account{Kind: models.KindApplicant})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	role, err := ResolveAdministrator(&models.Account{Kind: models.KindAdministrator, Role: models.RoleApproving})
	require.NoError(t, err)
	assert.Equal(t, models.RoleApproving, role)
}
