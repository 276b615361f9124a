package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/internal/platform/config"
)

func TestNewClient_DisabledWithoutBrokers(t *testing.T) {
	cl, err := NewClient(config.KafkaConfig{})
	require.NoError(t, err)
	assert.Nil(t, cl)
}

func TestNewClient_ConfiguredBrokers(t *testing.T) {
	// kgo does not dial until first use.
	cl, err := NewClient(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}, AuditTopic: "portal.audit"})
	require.NoError(t, err)
	require.NotNil(t, cl)
	cl.Close()
}
