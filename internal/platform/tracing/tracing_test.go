package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/internal/platform/config"
)

func TestInit_DisabledIsNoop(t *testing.T) {
	p, err := Init(context.Background(), config.TracingConfig{Enabled: true})
	require.NoError(t, err)
	assert.Nil(t, p.provider)
	assert.NoError(t, p.Shutdown(context.Background()))
}
