package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitConfigPresets(t *testing.T) {
	def := DefaultRateLimitConfig()
	assert.Equal(t, uint32(10), def.MaxRequests)
	assert.Equal(t, uint32(5), def.LockoutThreshold)

	strict := StrictRateLimitConfig()
	assert.Equal(t, uint32(5), strict.MaxRequests)
	assert.Equal(t, uint32(3), strict.LockoutThreshold)

	relaxed := RelaxedRateLimitConfig()
	assert.Equal(t, uint32(100), relaxed.MaxRequests)
	assert.False(t, relaxed.ExponentialBackoff)

	backup := BackupRateLimitConfig()
	assert.Equal(t, uint32(10), backup.MaxRequests)
}
