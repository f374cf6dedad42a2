package rotation

import (
	"sort"
	"time"

	"github.com/skylock-oss/skylock/internal/errs"
)

// Version is a single key version in a Chain (spec §3 KeyVersion).
type Version struct {
	Version         uint64    `json:"version"`
	Fingerprint     string    `json:"fingerprint"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	GraceEndsAt     time.Time `json:"grace_ends_at"`
	EncryptionCount uint64    `json:"encryption_count"`
	IsActive        bool      `json:"is_active"`
	CanDecrypt      bool      `json:"can_decrypt"`
	Salt            string    `json:"salt"`
	Algorithm       string    `json:"algorithm"`
}

// State classifies a Version's position in the rotation state machine.
type State int

const (
	StateCreated State = iota
	StateGrace
	StateRetired
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateGrace:
		return "Grace"
	case StateRetired:
		return "Retired"
	default:
		return "Unknown"
	}
}

// State reports which rotation state this version is currently in,
// evaluated against now.
func (v Version) State(now time.Time) State {
	if now.Before(v.ExpiresAt) {
		return StateCreated
	}
	if now.Before(v.GraceEndsAt) {
		return StateGrace
	}
	return StateRetired
}

// NeedsRotation reports whether this version has aged out or used up
// its encryption budget under policy.
func (v Version) NeedsRotation(policy Policy, now time.Time) bool {
	if !policy.Enabled {
		return false
	}
	if !now.Before(v.ExpiresAt) {
		return true
	}
	return v.EncryptionCount >= policy.MaxEncryptionsPerKey
}

// Chain manages an ordered set of key versions under a rotation
// Policy (spec §3 KeyChain).
type Chain struct {
	Versions      []Version  `json:"versions"` // newest first
	ActiveVersion uint64     `json:"active_version"`
	CreatedAt     time.Time  `json:"created_at"`
	LastRotation  *time.Time `json:"last_rotation"`
	Policy        Policy     `json:"policy"`
}

// NewChain creates a Chain with a single initial, active version.
func NewChain(fingerprint, salt string, policy Policy) Chain {
	now := time.Now().UTC()
	expiresAt := now.Add(policy.MaxKeyAge)
	graceEndsAt := expiresAt.Add(policy.GracePeriod)

	initial := Version{
		Version:     1,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
		GraceEndsAt: graceEndsAt,
		IsActive:    true,
		CanDecrypt:  true,
		Salt:        salt,
		Algorithm:   "AES-256-GCM",
	}

	return Chain{
		Versions:      []Version{initial},
		ActiveVersion: 1,
		CreatedAt:     now,
		Policy:        policy,
	}
}

// Active returns the currently active version.
func (c *Chain) Active() (Version, bool) {
	return c.Get(c.ActiveVersion)
}

// Get returns the version with the given number, if present.
func (c *Chain) Get(version uint64) (Version, bool) {
	for _, v := range c.Versions {
		if v.Version == version {
			return v, true
		}
	}
	return Version{}, false
}

// DecryptableVersions returns every version still valid for
// decryption.
func (c *Chain) DecryptableVersions() []Version {
	out := make([]Version, 0, len(c.Versions))
	for _, v := range c.Versions {
		if v.CanDecrypt {
			out = append(out, v)
		}
	}
	return out
}

// NeedsRotation reports whether the active version has aged out or
// exhausted its encryption budget.
func (c *Chain) NeedsRotation() bool {
	if !c.Policy.Enabled {
		return false
	}
	active, ok := c.Active()
	if !ok {
		return true
	}
	return active.NeedsRotation(c.Policy, time.Now().UTC())
}

// CanRotate reports whether MinRotationInterval has elapsed since the
// last rotation, or since the chain was created if it has never been
// rotated.
func (c *Chain) CanRotate() bool {
	last := c.CreatedAt
	if c.LastRotation != nil {
		last = *c.LastRotation
	}
	return !time.Now().UTC().Before(last.Add(c.Policy.MinRotationInterval))
}

// Rotate deactivates the current active version, inserts a new active
// version with a strictly greater number, and sweeps retired versions.
// Returns the new version number.
func (c *Chain) Rotate(newFingerprint, newSalt string) (uint64, error) {
	if !c.CanRotate() {
		return 0, errs.New(errs.RotationTooSoon, "minimum rotation interval not elapsed")
	}

	now := time.Now().UTC()

	maxVersion := uint64(0)
	for i := range c.Versions {
		if c.Versions[i].Version == c.ActiveVersion {
			c.Versions[i].IsActive = false
		}
		if c.Versions[i].Version > maxVersion {
			maxVersion = c.Versions[i].Version
		}
	}
	newVersionNumber := maxVersion + 1

	expiresAt := now.Add(c.Policy.MaxKeyAge)
	graceEndsAt := expiresAt.Add(c.Policy.GracePeriod)

	newVersion := Version{
		Version:     newVersionNumber,
		Fingerprint: newFingerprint,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
		GraceEndsAt: graceEndsAt,
		IsActive:    true,
		CanDecrypt:  true,
		Salt:        newSalt,
		Algorithm:   "AES-256-GCM",
	}

	c.Versions = append([]Version{newVersion}, c.Versions...)
	c.ActiveVersion = newVersionNumber
	c.LastRotation = &now

	c.sweepRetired(now)

	return newVersionNumber, nil
}

// sweepRetired drops any version that is Retired and not active, and
// marks any version past its grace period (other than the active one)
// as no longer decryptable.
func (c *Chain) sweepRetired(now time.Time) {
	kept := c.Versions[:0:0]
	for _, v := range c.Versions {
		if v.Version == c.ActiveVersion {
			kept = append(kept, v)
			continue
		}
		if now.Before(v.GraceEndsAt) {
			kept = append(kept, v)
			continue
		}
		// Past grace and not active: retired, safe to drop.
	}
	for i := range kept {
		if kept[i].Version != c.ActiveVersion && !now.Before(kept[i].GraceEndsAt) {
			kept[i].CanDecrypt = false
		}
	}
	c.Versions = kept

	sort.Slice(c.Versions, func(i, j int) bool {
		return c.Versions[i].Version > c.Versions[j].Version
	})
}

// RecordEncryption increments the active version's encryption counter.
func (c *Chain) RecordEncryption() error {
	for i := range c.Versions {
		if c.Versions[i].Version == c.ActiveVersion {
			c.Versions[i].EncryptionCount++
			return nil
		}
	}
	return errs.New(errs.InvalidKey, "no active key version")
}
