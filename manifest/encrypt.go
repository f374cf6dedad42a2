package manifest

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"

	skycrypto "github.com/skylock-oss/skylock/crypto"
	"github.com/skylock-oss/skylock/internal/errs"
)

// manifestLogicalName is the AAD logical_name bound into every
// encrypted manifest blob.
const manifestLogicalName = "manifest.json"

// Encrypted is an encrypted manifest: the public header plus the
// ciphertext that only a key holder can open.
type Encrypted struct {
	Header        ManifestHeader
	EncryptedData []byte
}

// Encrypt serializes manifest to canonical JSON, encrypts it under key
// with AAD bound to backup_id and "manifest.json", and builds the
// public header carrying the SHA-256 of the ciphertext.
func Encrypt(m *BackupManifest, key []byte) (Encrypted, error) {
	plaintext, err := json.Marshal(m)
	if err != nil {
		return Encrypted{}, errs.Wrap(errs.IoError, "serialize manifest", err)
	}

	encryptedData, err := skycrypto.EncryptWithAAD(key, plaintext, m.BackupID, manifestLogicalName)
	if err != nil {
		return Encrypted{}, err
	}

	hash := sha256.Sum256(encryptedData)
	header := HeaderFromManifest(m, hex.EncodeToString(hash[:]))

	return Encrypted{Header: header, EncryptedData: encryptedData}, nil
}

// Decrypt reverses Encrypt, requiring the same backup_id used to
// encrypt.
func Decrypt(encryptedData []byte, backupID string, key []byte) (*BackupManifest, error) {
	plaintext, err := skycrypto.DecryptWithAAD(key, encryptedData, backupID, manifestLogicalName)
	if err != nil {
		return nil, err
	}

	var m BackupManifest
	if err := json.Unmarshal(plaintext, &m); err != nil {
		return nil, errs.Wrap(errs.IoError, "deserialize manifest", err)
	}
	return &m, nil
}

// VerifyIntegrity constant-time compares the SHA-256 of encryptedData
// against expectedHash (hex-encoded).
func VerifyIntegrity(encryptedData []byte, expectedHash string) bool {
	hash := sha256.Sum256(encryptedData)
	actual := hex.EncodeToString(hash[:])
	return subtle.ConstantTimeCompare([]byte(actual), []byte(expectedHash)) == 1
}
