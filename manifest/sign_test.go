package manifest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestSigning(t *testing.T) {
	m := testManifest()
	key, err := GenerateSigningKey("backup_integrity", nil)
	require.NoError(t, err)

	require.NoError(t, SignManifest(&m, key, 1))
	assert.NotNil(t, m.Signature)
	assert.Equal(t, uint64(1), m.BackupChainVersion)

	valid, err := VerifyManifest(&m, key.Public())
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestTamperedManifestDetected(t *testing.T) {
	m := testManifest()
	key, err := GenerateSigningKey("backup_integrity", nil)
	require.NoError(t, err)

	require.NoError(t, SignManifest(&m, key, 1))
	m.FileCount = 999

	valid, err := VerifyManifest(&m, key.Public())
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestVerifyManifestUnsignedErrors(t *testing.T) {
	m := testManifest()
	key, err := GenerateSigningKey("backup_integrity", nil)
	require.NoError(t, err)

	_, err = VerifyManifest(&m, key.Public())
	require.Error(t, err)
}

func TestVerifyManifestFingerprintMismatch(t *testing.T) {
	m := testManifest()
	key1, err := GenerateSigningKey("p", nil)
	require.NoError(t, err)
	key2, err := GenerateSigningKey("p", nil)
	require.NoError(t, err)

	require.NoError(t, SignManifest(&m, key1, 1))

	_, err = VerifyManifest(&m, key2.Public())
	require.Error(t, err)
}

func TestChainVersionAntiRollback(t *testing.T) {
	dir := t.TempDir()
	chainPath := filepath.Join(dir, "chain_state.json")

	key, err := GenerateSigningKey("backup_integrity", nil)
	require.NoError(t, err)

	m1 := testManifest()
	m1.BackupID = "backup_1"
	require.NoError(t, SignManifest(&m1, key, 1))

	valid, err := VerifyManifestWithChain(&m1, key.Public(), chainPath)
	require.NoError(t, err)
	assert.True(t, valid)

	m2 := testManifest()
	m2.BackupID = "backup_2"
	require.NoError(t, SignManifest(&m2, key, 2))

	valid, err = VerifyManifestWithChain(&m2, key.Public(), chainPath)
	require.NoError(t, err)
	assert.True(t, valid)

	// Replaying the earlier manifest must be rejected as a rollback.
	_, err = VerifyManifestWithChain(&m1, key.Public(), chainPath)
	require.Error(t, err)
}

func TestChainKeyRotationDetection(t *testing.T) {
	dir := t.TempDir()
	chainPath := filepath.Join(dir, "chain_state.json")

	key1, err := GenerateSigningKey("backup_integrity", nil)
	require.NoError(t, err)

	m1 := testManifest()
	m1.BackupID = "backup_1"
	require.NoError(t, SignManifest(&m1, key1, 1))
	_, err = VerifyManifestWithChain(&m1, key1.Public(), chainPath)
	require.NoError(t, err)

	key2, err := GenerateSigningKey("backup_integrity", nil)
	require.NoError(t, err)

	m2 := testManifest()
	m2.BackupID = "backup_2"
	require.NoError(t, SignManifest(&m2, key2, 2))

	_, err = VerifyManifestWithChain(&m2, key2.Public(), chainPath)
	require.Error(t, err)
}

func TestGetNextChainVersion(t *testing.T) {
	dir := t.TempDir()
	chainPath := filepath.Join(dir, "chain_state.json")

	v, err := GetNextChainVersion(chainPath)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	key, err := GenerateSigningKey("p", nil)
	require.NoError(t, err)
	m := testManifest()
	require.NoError(t, SignManifest(&m, key, 1))
	_, err = VerifyManifestWithChain(&m, key.Public(), chainPath)
	require.NoError(t, err)

	v, err = GetNextChainVersion(chainPath)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
}
