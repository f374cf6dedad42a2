package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMetadataGeneratesUniqueSessionIDs(t *testing.T) {
	a := NewMetadata("pubkey-a", KdfInfo{MemoryKiB: 65536, Time: 3, Parallelism: 1})
	b := NewMetadata("pubkey-b", KdfInfo{MemoryKiB: 65536, Time: 3, Parallelism: 1})

	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.Equal(t, MetadataVersion, a.Version)
}

func TestMetadataBuilder(t *testing.T) {
	m := NewMetadataBuilder().
		WithEphemeralPublicKey("abc123").
		WithKdfInfo(KdfInfo{MemoryKiB: 65536, Time: 3, Parallelism: 1}).
		Build()

	assert.Equal(t, "abc123", m.EphemeralPublicKeyB64)
	assert.Equal(t, uint32(65536), m.KdfInfo.MemoryKiB)
	assert.NotEmpty(t, m.SessionID)
}
