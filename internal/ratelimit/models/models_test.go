package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewKey(t *testing.T) {
	assert.Equal(t, Key("rl:login:alice@example.com"), NewKey(ActionLogin, "Alice@Example.com"))
	// Colons in the caller cannot spill into another segment.
	assert.Equal(t, Key("rl:login:user_admin"), NewKey(ActionLogin, "user:admin"))
}

func TestConsumed(t *testing.T) {
	assert.True(t, Consumed(Counter{Count: 3}, 3).Allowed)
	assert.Equal(t, 0, Consumed(Counter{Count: 3}, 3).Remaining)

	denied := Consumed(Counter{Count: 4, TTL: time.Second}, 3)
	assert.False(t, denied.Allowed)
	assert.Equal(t, time.Second, denied.RetryAfter)
}

func TestLockout(t *testing.T) {
	assert.True(t, Lockout(Counter{Count: 4}, 5).Allowed)
	assert.Equal(t, 1, Lockout(Counter{Count: 4}, 5).Remaining)

	locked := Lockout(Counter{Count: 5, TTL: time.Minute}, 5)
	assert.False(t, locked.Allowed)
	assert.Equal(t, time.Minute, locked.RetryAfter)
}
