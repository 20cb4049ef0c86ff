package cmd

import (
	"testing"

	"storefront/config"
	"storefront/infrastructure/persistence/mysql"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutboxPublisher(t *testing.T) {
	p, closer, err := NewOutboxPublisher(config.OutboxConfig{})
	require.NoError(t, err)
	assert.IsType(t, &mysql.LoggingOutboxPublisher{}, p)
	assert.NoError(t, closer.Close())

	_, _, err = NewOutboxPublisher(config.OutboxConfig{Publisher: "carrier-pigeon"})
	assert.EqualError(t, err, `unknown outbox publisher "carrier-pigeon"`)

	_, _, err = NewOutboxPublisher(config.OutboxConfig{Publisher: "kafka"})
	assert.Error(t, err, "kafka without brokers must be rejected")
}
