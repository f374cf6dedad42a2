package crypto

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/argon2"

	"github.com/skylock-oss/skylock/internal/errs"
)

// KdfAlgorithmArgon2id identifies the only KDF algorithm this package
// currently derives keys with. Carried on KdfParams so a future
// algorithm addition can be distinguished on read without guessing.
const KdfAlgorithmArgon2id = "argon2id"

// KdfParams captures the Argon2id tuning used to derive a LongTermKey
// from a password. Stored verbatim in a backup's public header so a
// future run (possibly on different hardware) derives the identical
// key from the same password and salt (spec §3).
type KdfParams struct {
	// Algorithm names the KDF this record was derived with. Always
	// KdfAlgorithmArgon2id today; present so old records stay
	// self-describing if a second algorithm is ever added.
	Algorithm string `json:"algorithm" yaml:"algorithm"`
	// MemoryKiB is the Argon2id memory parameter in KiB.
	MemoryKiB uint32 `json:"memory_cost_kib" yaml:"memory_cost_kib"`
	// Time is the Argon2id iteration count.
	Time uint32 `json:"time_cost" yaml:"time_cost"`
	// Parallelism is the Argon2id lane count.
	Parallelism uint8 `json:"parallelism" yaml:"parallelism"`
	// Salt is the random salt used for this key. 16 bytes.
	Salt []byte `json:"salt_b64" yaml:"salt_b64"`
}

// DefaultKdfParams returns the spec-mandated Argon2id tuning: 64 MiB
// memory, 3 passes, 1 lane.
func DefaultKdfParams() KdfParams {
	return KdfParams{
		Algorithm:   KdfAlgorithmArgon2id,
		MemoryKiB:   64 * 1024,
		Time:        3,
		Parallelism: 1,
	}
}

// NewKdfParams returns DefaultKdfParams with a freshly generated
// 16-byte salt.
func NewKdfParams() (KdfParams, error) {
	p := DefaultKdfParams()
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return KdfParams{}, errs.Wrap(errs.IoError, "generate kdf salt", err)
	}
	p.Salt = salt
	return p, nil
}

// DeriveLongTermKey runs Argon2id over password using p, producing a
// 32-byte LongTermKey. p.Salt must be populated (see NewKdfParams).
func DeriveLongTermKey(password []byte, p KdfParams) ([]byte, error) {
	if len(p.Salt) == 0 {
		return nil, errs.New(errs.InvalidKey, "kdf params missing salt")
	}
	key := argon2.IDKey(password, p.Salt, p.Time, p.MemoryKiB, p.Parallelism, KeySize)
	return key, nil
}
