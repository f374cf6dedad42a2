package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultParallelHashConfigCapsThreads(t *testing.T) {
	c := DefaultParallelHashConfig()
	assert.LessOrEqual(t, c.MaxThreads, maxHashThreads)
	assert.GreaterOrEqual(t, c.MaxThreads, 1)
	assert.Equal(t, 4*1024*1024, c.ChunkSize)
}

func TestSingleThreadedParallelHashConfigNeverParallel(t *testing.T) {
	c := SingleThreadedParallelHashConfig()
	assert.Equal(t, 1, c.MaxThreads)
}

func TestDefaultUploadPipelineConfig(t *testing.T) {
	c := DefaultUploadPipelineConfig()
	assert.Equal(t, 8, c.MaxConcurrentUploads)
	assert.Equal(t, 3, c.MaxRetries)
}
