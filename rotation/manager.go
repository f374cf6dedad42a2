package rotation

import (
	"sync"

	skycrypto "github.com/skylock-oss/skylock/crypto"
	"github.com/skylock-oss/skylock/internal/errs"
	"github.com/skylock-oss/skylock/internal/logger"
	"github.com/skylock-oss/skylock/internal/metrics"
)

// Manager ties a Chain's bookkeeping to an in-memory key cache. The
// cache is deliberately never repopulated by re-deriving keys from a
// password: rotation changes the key material itself, so a cache miss
// for a version that still needs decrypting is a hard failure (spec
// §4.C).
type Manager struct {
	mu      sync.RWMutex
	chain   Chain
	cache   map[uint64][]byte
	log     logger.Logger
	metrics *metrics.Registry
}

// AttachMetrics wires a metrics registry so rotations are reported.
// Optional; a Manager with no registry attached simply skips recording.
func (m *Manager) AttachMetrics(reg *metrics.Registry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = reg
}

// NewManager creates a Manager with a fresh Chain seeded from
// initialKey.
func NewManager(initialKey []byte, policy Policy, log logger.Logger) (*Manager, error) {
	if len(initialKey) != skycrypto.KeySize {
		return nil, errs.New(errs.InvalidKey, "initial key must be 32 bytes")
	}
	if log == nil {
		log = logger.Noop()
	}

	fingerprint := skycrypto.Fingerprint(initialKey)
	salt := skycrypto.Fingerprint([]byte(fingerprint + ":salt"))

	chain := NewChain(fingerprint, salt, policy)
	cache := map[uint64][]byte{1: append([]byte(nil), initialKey...)}

	return &Manager{chain: chain, cache: cache, log: log}, nil
}

// LoadManager rebuilds a Manager from a previously persisted Chain.
// The key cache starts empty: callers must CacheKey every version
// they can still decrypt before relying on GetKey.
func LoadManager(chain Chain, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Noop()
	}
	return &Manager{chain: chain, cache: make(map[uint64][]byte), log: log}
}

// Chain returns a copy of the current chain state, suitable for
// persistence.
func (m *Manager) Chain() Chain {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chain
}

// NeedsRotation reports whether the active version needs to rotate.
func (m *Manager) NeedsRotation() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chain.NeedsRotation()
}

// ActiveVersion returns the active version number.
func (m *Manager) ActiveVersion() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chain.ActiveVersion
}

// Rotate installs newKey as the new active version, caching it and
// persisting the updated chain state via save.
func (m *Manager) Rotate(newKey []byte) (uint64, error) {
	if len(newKey) != skycrypto.KeySize {
		return 0, errs.New(errs.InvalidKey, "new key must be 32 bytes")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fingerprint := skycrypto.Fingerprint(newKey)
	salt := skycrypto.Fingerprint([]byte(fingerprint + ":salt"))

	version, err := m.chain.Rotate(fingerprint, salt)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordRotation("failure")
		}
		return 0, err
	}
	m.cache[version] = append([]byte(nil), newKey...)

	m.log.Info("rotated key chain",
		logger.Uint64("version", version),
		logger.String("fingerprint", fingerprint))

	if m.metrics != nil {
		m.metrics.RecordRotation("success")
	}

	return version, nil
}

// GetKey returns the cached key material for version, failing if it
// isn't cached — the manager never re-derives a rotated key from a
// password.
func (m *Manager) GetKey(version uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.cache[version]
	if !ok {
		return nil, errs.New(errs.InvalidKey, "key version not found in cache")
	}
	return key, nil
}

// CacheKey stores key material for version, used when reconstructing
// decryption capability for versions loaded from persisted state.
func (m *Manager) CacheKey(version uint64, key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[version] = append([]byte(nil), key...)
}

// RecordEncryption increments the active version's encryption counter.
func (m *Manager) RecordEncryption() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chain.RecordEncryption()
}

// Info summarizes the chain's current state for observability.
type Info struct {
	ActiveVersion uint64
	TotalVersions int
	NeedsRotation bool
	Policy        Policy
	LastRotation  *string
}

// Info returns a snapshot summary of the managed chain.
func (m *Manager) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var lastRotation *string
	if m.chain.LastRotation != nil {
		s := m.chain.LastRotation.Format("2006-01-02T15:04:05Z07:00")
		lastRotation = &s
	}

	return Info{
		ActiveVersion: m.chain.ActiveVersion,
		TotalVersions: len(m.chain.Versions),
		NeedsRotation: m.chain.NeedsRotation(),
		Policy:        m.chain.Policy,
		LastRotation:  lastRotation,
	}
}

// Versions returns a copy of every version currently tracked.
func (m *Manager) Versions() []Version {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Version, len(m.chain.Versions))
	copy(out, m.chain.Versions)
	return out
}
