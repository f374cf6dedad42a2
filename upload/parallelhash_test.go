package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylock-oss/skylock/config"
)

func TestHashDataSmallMatchesSequential(t *testing.T) {
	cfg := config.DefaultParallelHashConfig()
	data := []byte("small payload under the parallel threshold")

	got := HashData(data, cfg)

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestHashDataParallelIsDeterministic(t *testing.T) {
	cfg := config.ParallelHashConfig{ChunkSize: 16, ParallelThreshold: 0, MaxThreads: 4}
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i % 251)
	}

	first := HashData(data, cfg)
	second := HashData(data, cfg)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestHashDataParallelMatchesManualCombine(t *testing.T) {
	cfg := config.ParallelHashConfig{ChunkSize: 4, ParallelThreshold: 0, MaxThreads: 2}
	data := []byte("0123456789abcdef")

	got := HashData(data, cfg)

	var chunks [][32]byte
	for i := 0; i < len(data); i += cfg.ChunkSize {
		end := i + cfg.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, sha256.Sum256(data[i:end]))
	}
	combined := sha256.New()
	for _, c := range chunks {
		combined.Write(c[:])
	}
	want := hex.EncodeToString(combined.Sum(nil))

	require.Equal(t, want, got)
}

func TestHashDataSingleChunkEqualsSequential(t *testing.T) {
	cfg := config.ParallelHashConfig{ChunkSize: 1024, ParallelThreshold: 0, MaxThreads: 4}
	data := []byte("fits in one chunk")

	got := HashData(data, cfg)
	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}
