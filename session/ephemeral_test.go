package session

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKeyRoundtrip(t *testing.T) {
	longTermKey := bytes.Repeat([]byte{0x11}, 32)

	key, err := New("session-1", longTermKey)
	require.NoError(t, err)

	blob, err := key.Encrypt([]byte("backup payload"), nil)
	require.NoError(t, err)

	got, err := key.Decrypt(blob, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("backup payload"), got)
}

func TestDifferentSessionsProduceDifferentKeys(t *testing.T) {
	longTermKey := bytes.Repeat([]byte{0x22}, 32)

	k1, err := New("session-a", longTermKey)
	require.NoError(t, err)
	k2, err := New("session-b", longTermKey)
	require.NoError(t, err)

	blob, err := k1.Encrypt([]byte("same plaintext"), nil)
	require.NoError(t, err)

	_, err = k2.Decrypt(blob, nil)
	require.Error(t, err)
}

func TestReconstructMatchesOriginal(t *testing.T) {
	longTermKey := bytes.Repeat([]byte{0x33}, 32)

	original, err := New("session-c", longTermKey)
	require.NoError(t, err)

	blob, err := original.Encrypt([]byte("restorable"), nil)
	require.NoError(t, err)

	reconstructed, err := Reconstruct("session-c", longTermKey, original.EphemeralPublicKey)
	require.NoError(t, err)

	got, err := reconstructed.Decrypt(blob, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("restorable"), got)
}

func TestSessionKeyWearOutBound(t *testing.T) {
	longTermKey := bytes.Repeat([]byte{0x44}, 32)
	key, err := New("session-d", longTermKey)
	require.NoError(t, err)

	key.encryptionCount = MaxEncryptionsPerSession

	_, err = key.Encrypt([]byte("one too many"), nil)
	require.Error(t, err)
}

func TestZeroizeRendersKeyUnusable(t *testing.T) {
	longTermKey := bytes.Repeat([]byte{0x55}, 32)
	key, err := New("session-e", longTermKey)
	require.NoError(t, err)

	key.Zeroize()

	_, err = key.Encrypt([]byte("payload"), nil)
	require.Error(t, err)
}
