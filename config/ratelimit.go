package config

import "time"

// RateLimitConfig tunes a token-bucket rate limiter with exponential
// lockout backoff (spec §5).
type RateLimitConfig struct {
	// MaxRequests is the number of requests allowed per Window.
	MaxRequests uint32 `yaml:"max_requests" json:"max_requests"`
	// Window is the period over which a full bucket of MaxRequests
	// tokens refills.
	Window time.Duration `yaml:"window" json:"window"`
	// LockoutThreshold is the number of consecutive failures that
	// triggers a lockout.
	LockoutThreshold uint32 `yaml:"lockout_threshold" json:"lockout_threshold"`
	// LockoutDuration is the initial lockout length.
	LockoutDuration time.Duration `yaml:"lockout_duration" json:"lockout_duration"`
	// MaxLockoutDuration caps exponential backoff growth.
	MaxLockoutDuration time.Duration `yaml:"max_lockout_duration" json:"max_lockout_duration"`
	// BackoffMultiplier scales lockout duration on each repeat offense.
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	// ExponentialBackoff toggles the multiplier; when false every
	// lockout uses LockoutDuration unchanged.
	ExponentialBackoff bool `yaml:"exponential_backoff" json:"exponential_backoff"`
}

// DefaultRateLimitConfig allows 10 requests per minute, locking out for
// 5 minutes after 5 consecutive failures, doubling on repeat offenses
// up to a 24 hour ceiling.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests:        10,
		Window:             time.Minute,
		LockoutThreshold:   5,
		LockoutDuration:    5 * time.Minute,
		MaxLockoutDuration: 24 * time.Hour,
		BackoffMultiplier:  2.0,
		ExponentialBackoff: true,
	}
}

// StrictRateLimitConfig is tuned for passphrase/session-key attempts:
// fewer requests, a shorter lockout threshold, and a steeper backoff.
func StrictRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests:        5,
		Window:             time.Minute,
		LockoutThreshold:   3,
		LockoutDuration:    15 * time.Minute,
		MaxLockoutDuration: 24 * time.Hour,
		BackoffMultiplier:  3.0,
		ExponentialBackoff: true,
	}
}

// RelaxedRateLimitConfig is tuned for high-volume, low-sensitivity
// operations such as manifest reads.
func RelaxedRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests:        100,
		Window:             time.Minute,
		LockoutThreshold:   20,
		LockoutDuration:    time.Minute,
		MaxLockoutDuration: time.Hour,
		BackoffMultiplier:  1.5,
		ExponentialBackoff: false,
	}
}

// BackupRateLimitConfig bounds how often a full backup run may be
// triggered: 10 per hour, with a gentler non-exponential lockout.
func BackupRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests:        10,
		Window:             time.Hour,
		LockoutThreshold:   15,
		LockoutDuration:    30 * time.Minute,
		MaxLockoutDuration: 2 * time.Hour,
		BackoffMultiplier:  1.5,
		ExponentialBackoff: false,
	}
}
