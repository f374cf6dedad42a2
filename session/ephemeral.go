// Package session implements the per-backup session-key scheme (spec
// §4.B). Each session derives its own AES-256-GCM key from the
// long-term key plus a fresh X25519 ephemeral public key, so two
// sessions under the same password never reuse a key even when the
// backed-up content is identical.
//
// This is session-bound secrecy, not forward secrecy: recovering a
// past session's key requires only the long-term key and the stored
// ephemeral public key, both of which survive compromise of the
// long-term key. The scheme accepts this tradeoff to keep backups
// restorable offline from password alone. Callers must not describe
// this package as providing forward secrecy against long-term key
// compromise.
package session

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	skycrypto "github.com/skylock-oss/skylock/crypto"
	"github.com/skylock-oss/skylock/internal/errs"
)

// sessionKeyInfo is the fixed HKDF info label for session key
// derivation (spec §3).
const sessionKeyInfo = "skylock-session-key-v1"

// MaxEncryptionsPerSession is the wear-out bound past which a session
// key refuses further encryptions (spec §3: "exhausts at 10^9").
const MaxEncryptionsPerSession = 1_000_000_000

// Key is a derived, single-session AES-256-GCM key with an encryption
// counter enforcing the wear-out bound.
type Key struct {
	SessionID          string
	EphemeralPublicKey []byte // X25519 public key, 32 bytes

	key             []byte
	encryptionCount uint64
	zeroed          bool
}

// New generates a fresh X25519 ephemeral keypair, derives the session
// key from longTermKey and the ephemeral public key, and discards the
// ephemeral private scalar immediately — it is never used again and
// never persisted.
func New(sessionID string, longTermKey []byte) (*Key, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "generate ephemeral x25519 key", err)
	}
	pub := priv.PublicKey().Bytes()

	return deriveKey(sessionID, longTermKey, pub)
}

// Reconstruct rebuilds the session key from a previously persisted
// ephemeral public key, as a holder of the password would when
// restoring a backup (spec §4.B).
func Reconstruct(sessionID string, longTermKey, ephemeralPublicKey []byte) (*Key, error) {
	return deriveKey(sessionID, longTermKey, ephemeralPublicKey)
}

func deriveKey(sessionID string, longTermKey, ephemeralPublicKey []byte) (*Key, error) {
	if len(longTermKey) == 0 {
		return nil, errs.New(errs.InvalidKey, "empty long term key")
	}
	if len(ephemeralPublicKey) == 0 {
		return nil, errs.New(errs.InvalidKey, "empty ephemeral public key")
	}

	salt := []byte("skylock-pfs-" + sessionID)
	ikm := make([]byte, 0, len(longTermKey)+len(ephemeralPublicKey))
	ikm = append(ikm, longTermKey...)
	ikm = append(ikm, ephemeralPublicKey...)

	r := hkdf.New(sha256.New, ikm, salt, []byte(sessionKeyInfo))
	key := make([]byte, skycrypto.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errs.Wrap(errs.InvalidKey, "derive session key", err)
	}

	return &Key{
		SessionID:          sessionID,
		EphemeralPublicKey: append([]byte(nil), ephemeralPublicKey...),
		key:                key,
	}, nil
}

// Encrypt seals plaintext under the session key, refusing once the
// wear-out bound is reached.
func (k *Key) Encrypt(plaintext, aad []byte) ([]byte, error) {
	if k.zeroed {
		return nil, errs.New(errs.InvalidKey, "session key zeroized")
	}
	if k.encryptionCount >= MaxEncryptionsPerSession {
		return nil, errs.New(errs.KeyWornOut, "session key exhausted its encryption budget")
	}
	blob, err := skycrypto.Encrypt(k.key, plaintext, aad)
	if err != nil {
		return nil, err
	}
	k.encryptionCount++
	return blob, nil
}

// Decrypt opens a blob sealed by Encrypt. Reconstructed keys may
// decrypt without limit; only Encrypt enforces the wear-out bound.
func (k *Key) Decrypt(blob, aad []byte) ([]byte, error) {
	if k.zeroed {
		return nil, errs.New(errs.InvalidKey, "session key zeroized")
	}
	return skycrypto.Decrypt(k.key, blob, aad)
}

// EncryptionCount reports how many times Encrypt has succeeded.
func (k *Key) EncryptionCount() uint64 {
	return k.encryptionCount
}

// Zeroize clears the derived key material. The Key must not be used
// afterward.
func (k *Key) Zeroize() {
	skycrypto.Zeroize(k.key)
	k.zeroed = true
}
