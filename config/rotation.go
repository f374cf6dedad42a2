package config

import "time"

// KeyRotationPolicy controls when a key chain rotates to a new key
// version (spec §4.C). Exactly one of the preset constructors below,
// or a caller-built value, is passed to rotation.NewManager.
type KeyRotationPolicy struct {
	// MaxKeyAge is the maximum age of a key before it must rotate.
	MaxKeyAge time.Duration `yaml:"max_key_age" json:"max_key_age"`
	// MaxEncryptionsPerKey is the maximum number of AEAD seals allowed
	// under a single key version before it must rotate.
	MaxEncryptionsPerKey uint64 `yaml:"max_encryptions_per_key" json:"max_encryptions_per_key"`
	// GracePeriod is how long a retired key version remains valid for
	// decryption after rotation.
	GracePeriod time.Duration `yaml:"grace_period" json:"grace_period"`
	// AutoReencrypt controls whether callers should proactively
	// re-encrypt data still under a retired key during its grace
	// period. The rotation manager only exposes the signal; acting on
	// it is a caller responsibility.
	AutoReencrypt bool `yaml:"auto_reencrypt" json:"auto_reencrypt"`
	// MinRotationInterval is the minimum time that must elapse between
	// two rotations, preventing rotation storms.
	MinRotationInterval time.Duration `yaml:"min_rotation_interval" json:"min_rotation_interval"`
	// Enabled toggles rotation entirely; when false, needs rotation
	// always reports false regardless of age or usage.
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// DefaultKeyRotationPolicy rotates every 90 days, with a 30 day grace
// period and no automatic re-encryption.
func DefaultKeyRotationPolicy() KeyRotationPolicy {
	return KeyRotationPolicy{
		MaxKeyAge:            90 * 24 * time.Hour,
		MaxEncryptionsPerKey: 1_000_000_000,
		GracePeriod:          30 * 24 * time.Hour,
		AutoReencrypt:        false,
		MinRotationInterval:  24 * time.Hour,
		Enabled:              true,
	}
}

// ConservativeKeyRotationPolicy rotates more often, with automatic
// re-encryption during the grace period.
func ConservativeKeyRotationPolicy() KeyRotationPolicy {
	return KeyRotationPolicy{
		MaxKeyAge:            30 * 24 * time.Hour,
		MaxEncryptionsPerKey: 100_000_000,
		GracePeriod:          14 * 24 * time.Hour,
		AutoReencrypt:        true,
		MinRotationInterval:  1 * time.Hour,
		Enabled:              true,
	}
}

// AggressiveKeyRotationPolicy rotates as often as the policy allows.
func AggressiveKeyRotationPolicy() KeyRotationPolicy {
	return KeyRotationPolicy{
		MaxKeyAge:            7 * 24 * time.Hour,
		MaxEncryptionsPerKey: 10_000_000,
		GracePeriod:          7 * 24 * time.Hour,
		AutoReencrypt:        true,
		MinRotationInterval:  1 * time.Hour,
		Enabled:              true,
	}
}

// RelaxedKeyRotationPolicy rotates rarely, for low-sensitivity backups.
func RelaxedKeyRotationPolicy() KeyRotationPolicy {
	return KeyRotationPolicy{
		MaxKeyAge:            365 * 24 * time.Hour,
		MaxEncryptionsPerKey: 10_000_000_000,
		GracePeriod:          90 * 24 * time.Hour,
		AutoReencrypt:        false,
		MinRotationInterval:  7 * 24 * time.Hour,
		Enabled:              true,
	}
}

// DisabledKeyRotationPolicy turns rotation off entirely; a key chain
// under this policy never reports needing rotation.
func DisabledKeyRotationPolicy() KeyRotationPolicy {
	p := DefaultKeyRotationPolicy()
	p.Enabled = false
	return p
}

// MarshalYAML lets an external config loader persist a chosen preset
// alongside the rest of its own YAML document. The rotation core never
// reads config files itself.
func (p KeyRotationPolicy) MarshalYAML() (interface{}, error) {
	type plain KeyRotationPolicy
	return plain(p), nil
}
