// Package crypto implements the backup core's crypto primitives: the
// password-derived long-term key (Argon2id) and the AES-256-GCM AEAD
// used for every ciphertext blob, manifest, and path-privacy component
// (spec §4.A).
//
// Ciphertext layout on the wire/storage is always:
//
//	nonce (12 bytes) || ciphertext || tag (16 bytes)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/skylock-oss/skylock/internal/errs"
)

const (
	// KeySize is the size in bytes of an AES-256 key.
	KeySize = 32
	// NonceSize is the size in bytes of the GCM nonce.
	NonceSize = 12
	// TagSize is the size in bytes of the GCM authentication tag.
	TagSize = 16
)

// AADPrefix is mixed into every AAD binding to namespace this format
// against any future on-disk version.
const AADPrefix = "skylock-v1"

// Encrypt seals plaintext under key with the given AAD, returning
// nonce||ciphertext||tag. The nonce is drawn fresh from a CSPRNG on
// every call.
func Encrypt(key []byte, plaintext, aad []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errs.Wrap(errs.IoError, "generate nonce", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, aad)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt opens a nonce||ciphertext||tag blob produced by Encrypt,
// verifying it against aad. Any tampering, wrong key, or wrong AAD
// surfaces as InvalidKey; a structurally truncated blob surfaces as
// InvalidCiphertext.
func Decrypt(key []byte, blob, aad []byte) ([]byte, error) {
	if len(blob) < NonceSize+TagSize {
		return nil, errs.New(errs.InvalidCiphertext, "ciphertext shorter than nonce+tag")
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := blob[:NonceSize]
	sealed := blob[NonceSize:]

	plaintext, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidKey, "aead verification failed", err)
	}
	return plaintext, nil
}

// EncryptWithAAD encrypts plaintext with the AAD-binding rule described
// in spec §4.A: AAD = SHA-256("skylock-v1" || backup_id || logical_name).
// Binding the AAD to both backup_id and logical_name means ciphertext
// from one backup can never be silently replayed as another backup's
// blob, or as a different file within the same backup.
func EncryptWithAAD(key []byte, plaintext []byte, backupID, logicalName string) ([]byte, error) {
	return Encrypt(key, plaintext, bindAAD(backupID, logicalName))
}

// DecryptWithAAD is the inverse of EncryptWithAAD.
func DecryptWithAAD(key []byte, blob []byte, backupID, logicalName string) ([]byte, error) {
	return Decrypt(key, blob, bindAAD(backupID, logicalName))
}

func bindAAD(backupID, logicalName string) []byte {
	h := sha256.New()
	h.Write([]byte(AADPrefix))
	h.Write([]byte(backupID))
	h.Write([]byte(logicalName))
	return h.Sum(nil)
}

// BindAAD exposes the spec §4.A AAD-binding rule for callers (such as
// the upload pipeline's session-key encryption step) that need the
// same AAD bytes without going through Encrypt/Decrypt directly.
func BindAAD(backupID, logicalName string) []byte {
	return bindAAD(backupID, logicalName)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, errs.New(errs.InvalidKey, "key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidKey, "construct aes cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidKey, "construct gcm", err)
	}
	return aead, nil
}
