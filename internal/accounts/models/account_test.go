package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
)

func TestParseRole(t *testing.T) {
	for _, r := range []Role{RoleBase, RoleSuper, RoleApproving, RoleVetting} {
		got, ok := ParseRole(string(r))
		assert.True(t, ok)
		assert.Equal(t, r, got)
	}
	for _, s := range []string{"", "admin", "SUPER_ADMIN", "super_admin "} {
		_, ok := ParseRole(s)
		assert.False(t, ok, s)
	}
}

func TestNewApplicant(t *testing.T) {
	now := time.Now()

	t.Run("normalizes email", func(t *testing.T) {
		a, err := NewApplicant(id.NewAccountID(), "Ada", " Ada@Example.COM ", "+15550100", "hash", now)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", a.Email)
		assert.Equal(t, KindApplicant, a.Kind)
		assert.Equal(t, RoleNone, a.Role)
		assert.False(t, a.IsAdministrator())
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		cases := []struct{ name, display, email, hash string }{
			{"empty name", "", "a@b.c", "h"},
			{"bad email", "Ada", "not-an-email", "h"},
			{"empty hash", "Ada", "a@b.c", ""},
		}
		for _, c := range cases {
			_, err := NewApplicant(id.NewAccountID(), c.display, c.email, "", c.hash, now)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation), c.name)
		}
	})
}

func TestNewAdministrator(t *testing.T) {
	a, err := NewAdministrator(id.NewAccountID(), RoleVetting, "Vera", "vera@gov.example", "hash", time.Now())
	require.NoError(t, err)
	assert.True(t, a.IsAdministrator())

	_, err = NewAdministrator(id.NewAccountID(), Role("root"), "Vera", "vera@gov.example", "hash", time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestVerificationFlagsSetOnce(t *testing.T) {
	a, err := NewApplicant(id.NewAccountID(), "Ada", "ada@example.com", "", "hash", time.Now())
	require.NoError(t, err)

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a.MarkPhoneVerified(first)
	a.MarkPhoneVerified(first.Add(time.Hour))

	assert.True(t, a.PhoneVerified())
	assert.Equal(t, first, *a.PhoneVerifiedAt)
	assert.False(t, a.EmailVerified())
}
