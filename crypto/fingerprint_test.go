package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStableAndDistinguishing(t *testing.T) {
	a := Fingerprint([]byte("alpha"))
	b := Fingerprint([]byte("beta"))

	assert.Equal(t, a, Fingerprint([]byte("alpha")))
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 16)
}

func TestFullFingerprintLength(t *testing.T) {
	assert.Len(t, FullFingerprint([]byte("alpha")), 64)
}
