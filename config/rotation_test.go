package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultKeyRotationPolicy(t *testing.T) {
	p := DefaultKeyRotationPolicy()
	assert.True(t, p.Enabled)
	assert.Equal(t, 90*24*time.Hour, p.MaxKeyAge)
	assert.Equal(t, 30*24*time.Hour, p.GracePeriod)
}

func TestKeyRotationPolicyPresets(t *testing.T) {
	conservative := ConservativeKeyRotationPolicy()
	assert.Equal(t, 30*24*time.Hour, conservative.MaxKeyAge)

	aggressive := AggressiveKeyRotationPolicy()
	assert.Equal(t, 7*24*time.Hour, aggressive.MaxKeyAge)

	relaxed := RelaxedKeyRotationPolicy()
	assert.Equal(t, 365*24*time.Hour, relaxed.MaxKeyAge)

	disabled := DisabledKeyRotationPolicy()
	assert.False(t, disabled.Enabled)
}

func TestKeyRotationPolicyMarshalYAML(t *testing.T) {
	p := DefaultKeyRotationPolicy()
	out, err := p.MarshalYAML()
	assert.NoError(t, err)
	assert.NotNil(t, out)
}
