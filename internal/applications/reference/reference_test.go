package reference

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/internal/applications/models"
	dErrors "portal/pkg/domain-errors"
)

func TestIssue(t *testing.T) {
	now := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)

	t.Run("formats prefix, month and suffix", func(t *testing.T) {
		ref, err := New().Issue(models.ServicePublicServantPass, now)
		require.NoError(t, err)
		assert.Regexp(t, Pattern, ref)
		assert.Equal(t, "PSP-202501-", ref[:11])
	})

	t.Run("every reference service matches the pattern", func(t *testing.T) {
		issuer := New()
		for _, entry := range models.Catalog() {
			if !entry.IssuesReference {
				continue
			}
			ref, err := issuer.Issue(entry.Name, now)
			require.NoError(t, err)
			assert.Regexp(t, Pattern, ref, entry.Name)
		}
	})

	t.Run("deterministic with injected randomness", func(t *testing.T) {
		issuer := New(WithRandom(bytes.NewReader([]byte{0, 1, 26, 35})))
		ref, err := issuer.Issue(models.ServiceCityPass, now)
		require.NoError(t, err)
		assert.Equal(t, "CP-202501-AB09", ref)
	})

	t.Run("skips biased bytes", func(t *testing.T) {
		issuer := New(WithRandom(bytes.NewReader([]byte{255, 0, 0, 0, 2, 9, 9, 9})))
		ref, err := issuer.Issue(models.ServiceCityPass, now)
		require.NoError(t, err)
		assert.Equal(t, "CP-202501-AAAC", ref)
	})

	t.Run("short randomness is unavailable", func(t *testing.T) {
		issuer := New(WithRandom(bytes.NewReader([]byte{1})))
		_, err := issuer.Issue(models.ServiceCityPass, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	t.Run("document requests carry no reference", func(t *testing.T) {
		_, err := New().Issue(models.ServiceDocumentRequest, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
