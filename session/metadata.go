package session

import (
	"time"

	"github.com/google/uuid"
)

// KdfInfo mirrors the subset of crypto.KdfParams needed to reconstruct
// the long-term key from a password, persisted alongside each session
// so restoration never depends on external state.
type KdfInfo struct {
	MemoryKiB   uint32 `json:"memory_kib"`
	Time        uint32 `json:"time"`
	Parallelism uint8  `json:"parallelism"`
	SaltB64     string `json:"salt_b64"`
}

// Metadata is the persisted record a key holder needs to reconstruct
// a session key offline: everything except the long-term key itself
// and the ephemeral private scalar, neither of which are ever written
// to disk (spec §3, §4.B).
type Metadata struct {
	SessionID             string    `json:"session_id"`
	EphemeralPublicKeyB64 string    `json:"ephemeral_public_key_b64"`
	CreatedAt             time.Time `json:"created_at"`
	KdfInfo               KdfInfo   `json:"kdf_info"`
	Version               int       `json:"version"`
}

// MetadataVersion is the current on-disk Metadata schema version.
const MetadataVersion = 1

// NewMetadata builds a Metadata record for a freshly created session,
// generating a random session ID.
func NewMetadata(ephemeralPublicKeyB64 string, kdf KdfInfo) Metadata {
	return Metadata{
		SessionID:             uuid.NewString(),
		EphemeralPublicKeyB64: ephemeralPublicKeyB64,
		CreatedAt:             time.Now().UTC(),
		KdfInfo:               kdf,
		Version:               MetadataVersion,
	}
}

// MetadataBuilder incrementally assembles a Metadata record, mirroring
// callers that learn the session ID before the ephemeral key is ready
// (or vice versa).
type MetadataBuilder struct {
	m Metadata
}

// NewMetadataBuilder starts a builder with a fresh session ID and the
// current time as CreatedAt.
func NewMetadataBuilder() *MetadataBuilder {
	return &MetadataBuilder{m: Metadata{
		SessionID: uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Version:   MetadataVersion,
	}}
}

// WithEphemeralPublicKey sets the base64-encoded ephemeral public key.
func (b *MetadataBuilder) WithEphemeralPublicKey(b64 string) *MetadataBuilder {
	b.m.EphemeralPublicKeyB64 = b64
	return b
}

// WithKdfInfo sets the KDF parameters used for the long-term key.
func (b *MetadataBuilder) WithKdfInfo(kdf KdfInfo) *MetadataBuilder {
	b.m.KdfInfo = kdf
	return b
}

// Build returns the assembled Metadata.
func (b *MetadataBuilder) Build() Metadata {
	return b.m
}
