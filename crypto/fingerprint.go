package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short hex digest of data, used throughout
// rotation and manifest chaining to reference key material and prior
// manifests without embedding them directly.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// FullFingerprint returns the full SHA-256 digest of data, hex encoded:
// all 32 bytes of collision resistance rather than the 8 bytes of the
// short display fingerprint.
func FullFingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
