// Package manifest implements the encrypted, signed backup manifest
// (spec §4.E): the full file listing is encrypted at rest, a small
// plaintext header carries only counts and totals for backup listing,
// and an Ed25519 signature plus chain state protect against tampering
// and rollback.
package manifest

import (
	"time"

	skycrypto "github.com/skylock-oss/skylock/crypto"
)

// FileEntry describes one backed-up file. ContentHash is over
// plaintext; RemotePath is a deterministic-but-opaque identifier under
// which the (possibly compressed, always encrypted) object is stored.
type FileEntry struct {
	LocalPath   string    `json:"local_path"`
	RemotePath  string    `json:"remote_path"`
	Size        int64     `json:"size"`
	ContentHash string    `json:"content_hash"`
	Compressed  bool      `json:"compressed"`
	Encrypted   bool      `json:"encrypted"`
	Timestamp   time.Time `json:"timestamp"`
}

// ManifestSignature is the Ed25519 signature record attached to a
// BackupManifest once signed.
type ManifestSignature struct {
	Algorithm    string    `json:"algorithm"`
	Fingerprint  string    `json:"fingerprint"`
	SignatureHex string    `json:"signature_hex"`
	SignedAt     time.Time `json:"signed_at"`
	KeyID        string    `json:"key_id"`
}

// BackupManifest is the full file listing for one backup run.
//
// Invariants: FileCount == len(Files); TotalSize == sum of Files.Size;
// if Signature is set, verifying the manifest with Signature set to
// nil must reproduce the signed bytes; BackupChainVersion must be
// strictly greater than the previously recorded chain version for
// this signing identity.
type BackupManifest struct {
	BackupID           string               `json:"backup_id"`
	Timestamp          time.Time            `json:"timestamp"`
	Files              []FileEntry          `json:"files"`
	TotalSize          int64                `json:"total_size"`
	FileCount          int                  `json:"file_count"`
	SourcePaths        []string             `json:"source_paths"`
	BaseBackupID       *string              `json:"base_backup_id,omitempty"`
	EncryptionVersion  string               `json:"encryption_version"`
	KdfParams          *skycrypto.KdfParams `json:"kdf_params,omitempty"`
	Signature          *ManifestSignature   `json:"signature,omitempty"`
	BackupChainVersion uint64               `json:"backup_chain_version"`
	EncryptedPathMap   *PathMapping         `json:"encrypted_path_map,omitempty"`
}

// New builds a BackupManifest from a file listing, computing
// FileCount and TotalSize from files.
func New(backupID string, timestamp time.Time, files []FileEntry, sourcePaths []string, encryptionVersion string) BackupManifest {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return BackupManifest{
		BackupID:          backupID,
		Timestamp:         timestamp,
		Files:             files,
		TotalSize:         total,
		FileCount:         len(files),
		SourcePaths:       sourcePaths,
		EncryptionVersion: encryptionVersion,
	}
}

// ManifestHeader is the public, unencrypted counterpart to an
// encrypted manifest. It carries only what's needed to list backups:
// no filenames, no paths, no per-file sizes.
type ManifestHeader struct {
	BackupID              string    `json:"backup_id"`
	Timestamp             time.Time `json:"timestamp"`
	FileCount             int       `json:"file_count"`
	TotalSize             int64     `json:"total_size"`
	EncryptionVersion     string    `json:"encryption_version"`
	ManifestEncrypted     bool      `json:"manifest_encrypted"`
	EncryptedManifestHash string    `json:"encrypted_manifest_hash"`
	ManifestFormatVersion uint32    `json:"manifest_format_version"`
}

// ManifestFormatVersion is the format version stamped into every
// header produced by this package. v3 = encrypted manifests.
const ManifestFormatVersion = 3

// HeaderFromManifest builds the public header for manifest, stamping
// in the hash of its encrypted form.
func HeaderFromManifest(m *BackupManifest, encryptedHash string) ManifestHeader {
	return ManifestHeader{
		BackupID:              m.BackupID,
		Timestamp:             m.Timestamp,
		FileCount:             m.FileCount,
		TotalSize:             m.TotalSize,
		EncryptionVersion:     m.EncryptionVersion,
		ManifestEncrypted:     true,
		EncryptedManifestHash: encryptedHash,
		ManifestFormatVersion: ManifestFormatVersion,
	}
}
