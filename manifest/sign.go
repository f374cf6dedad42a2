package manifest

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/skylock-oss/skylock/internal/errs"
)

// SignatureAlgorithm identifies the signing scheme recorded in every
// ManifestSignature.
const SignatureAlgorithm = "Ed25519"

// SignatureMetadata describes a signing key without exposing its
// private material.
type SignatureMetadata struct {
	KeyID        string     `json:"key_id"`
	Algorithm    string     `json:"algorithm"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Purpose      string     `json:"purpose"`
	PublicKeyHex string     `json:"public_key_hex"`
	Fingerprint  string     `json:"fingerprint"`
}

// SigningKey holds an Ed25519 keypair used to sign manifests. The
// private key never leaves this struct.
type SigningKey struct {
	Metadata     SignatureMetadata
	privateKey   ed25519.PrivateKey
	PublicKeyRaw ed25519.PublicKey
}

// GenerateSigningKey creates a fresh Ed25519 keypair for purpose,
// optionally expiring after expiresInDays.
func GenerateSigningKey(purpose string, expiresInDays *int) (*SigningKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidKey, "generate ed25519 keypair", err)
	}

	createdAt := time.Now().UTC()
	var expiresAt *time.Time
	if expiresInDays != nil {
		t := createdAt.Add(time.Duration(*expiresInDays) * 24 * time.Hour)
		expiresAt = &t
	}

	return &SigningKey{
		Metadata: SignatureMetadata{
			KeyID:        uuid.NewString(),
			Algorithm:    SignatureAlgorithm,
			CreatedAt:    createdAt,
			ExpiresAt:    expiresAt,
			Purpose:      purpose,
			PublicKeyHex: hex.EncodeToString(pub),
			Fingerprint:  keyFingerprint(pub),
		},
		privateKey:   priv,
		PublicKeyRaw: pub,
	}, nil
}

// Public returns the portion of the key that's safe to hand to a
// verifier.
func (k *SigningKey) Public() PublicKey {
	return PublicKey{Metadata: k.Metadata, VerifyingKey: k.PublicKeyRaw}
}

func keyFingerprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:8])
}

// PublicKey is the verifier-side counterpart to SigningKey.
type PublicKey struct {
	Metadata     SignatureMetadata
	VerifyingKey ed25519.PublicKey
}

// SignManifest signs manifest in place: it stamps chainVersion,
// canonically serializes the manifest with Signature cleared, signs
// those bytes, and attaches the resulting ManifestSignature.
func SignManifest(m *BackupManifest, key *SigningKey, chainVersion uint64) error {
	m.Signature = nil
	m.BackupChainVersion = chainVersion

	canonical, err := json.Marshal(m)
	if err != nil {
		return errs.Wrap(errs.IoError, "serialize manifest for signing", err)
	}

	sig := ed25519.Sign(key.privateKey, canonical)

	m.Signature = &ManifestSignature{
		Algorithm:    SignatureAlgorithm,
		Fingerprint:  key.Metadata.Fingerprint,
		SignatureHex: hex.EncodeToString(sig),
		SignedAt:     time.Now().UTC(),
		KeyID:        key.Metadata.KeyID,
	}
	return nil
}

// VerifyManifest checks manifest's signature against pub. It returns
// (false, nil) for a structurally valid but tampered or wrongly
// signed manifest, and a non-nil error when no signature is present,
// when the key fingerprint embedded in the signature does not match
// pub, or when the signature hex is malformed. The fingerprint is
// checked before the Ed25519 check runs.
func VerifyManifest(m *BackupManifest, pub PublicKey) (bool, error) {
	if m.Signature == nil {
		return false, errs.New(errs.SignatureInvalid, "manifest is not signed")
	}

	if m.Signature.Fingerprint != pub.Metadata.Fingerprint {
		return false, errs.New(errs.FingerprintMismatch,
			"signing key fingerprint does not match manifest signature")
	}

	sigBytes, err := hex.DecodeString(m.Signature.SignatureHex)
	if err != nil {
		return false, errs.Wrap(errs.SignatureInvalid, "decode signature hex", err)
	}

	canonical := *m
	canonical.Signature = nil
	canonicalJSON, err := json.Marshal(&canonical)
	if err != nil {
		return false, errs.Wrap(errs.IoError, "serialize manifest for verification", err)
	}

	return ed25519.Verify(pub.VerifyingKey, canonicalJSON, sigBytes), nil
}

// ChainState is the anti-rollback bookkeeping record consulted on
// every accepted manifest.
type ChainState struct {
	LatestVersion  uint64    `json:"latest_version"`
	LatestBackupID string    `json:"latest_backup_id"`
	LastUpdated    time.Time `json:"last_updated"`
	KeyFingerprint string    `json:"key_fingerprint"`
}

// LoadChainState reads chain state from path.
func LoadChainState(path string) (*ChainState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "read chain state", err)
	}
	var s ChainState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errs.Wrap(errs.IoError, "parse chain state", err)
	}
	return &s, nil
}

// Save writes chain state to path atomically (write to temp, then
// rename).
func (s *ChainState) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errs.Wrap(errs.IoError, "serialize chain state", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errs.Wrap(errs.IoError, "create chain state dir", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errs.Wrap(errs.IoError, "write chain state temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.IoError, "rename chain state into place", err)
	}
	return nil
}

// VerifyChainAdvance rejects newVersion unless it strictly advances
// past s.LatestVersion.
func (s *ChainState) VerifyChainAdvance(newVersion uint64) error {
	if newVersion <= s.LatestVersion {
		return errs.New(errs.Rollback,
			"new chain version does not strictly advance past the latest accepted version")
	}
	return nil
}

// VerifyManifestWithChain runs the full accept sequence from spec
// §4.E: Ed25519 verify, then (if a chain state file exists) key
// fingerprint continuity, then strict version advance, then an
// overwrite of the chain state. A first-ever manifest initializes the
// chain state instead of checking continuity.
func VerifyManifestWithChain(m *BackupManifest, pub PublicKey, chainStatePath string) (bool, error) {
	valid, err := VerifyManifest(m, pub)
	if err != nil {
		return false, err
	}
	if !valid {
		return false, nil
	}

	var existing *ChainState
	if _, statErr := os.Stat(chainStatePath); statErr == nil {
		existing, err = LoadChainState(chainStatePath)
		if err != nil {
			return false, err
		}
	} else if !os.IsNotExist(statErr) {
		return false, errs.Wrap(errs.IoError, "stat chain state", statErr)
	}

	if existing != nil {
		if existing.KeyFingerprint != pub.Metadata.Fingerprint {
			return false, errs.New(errs.FingerprintMismatch,
				"key rotation detected: reauthorize before accepting manifests signed by a new key")
		}
		if err := existing.VerifyChainAdvance(m.BackupChainVersion); err != nil {
			return false, err
		}
	}

	newState := &ChainState{
		LatestVersion:  m.BackupChainVersion,
		LatestBackupID: m.BackupID,
		LastUpdated:    time.Now().UTC(),
		KeyFingerprint: pub.Metadata.Fingerprint,
	}
	if err := newState.Save(chainStatePath); err != nil {
		return false, err
	}

	return true, nil
}

// GetNextChainVersion returns the next chain version to stamp into a
// manifest: latest+1, or 1 if no chain state has been recorded yet.
func GetNextChainVersion(chainStatePath string) (uint64, error) {
	if _, err := os.Stat(chainStatePath); err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, errs.Wrap(errs.IoError, "stat chain state", err)
	}

	s, err := LoadChainState(chainStatePath)
	if err != nil {
		return 0, err
	}
	return s.LatestVersion + 1, nil
}
