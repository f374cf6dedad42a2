package config

import "runtime"

// ParallelHashConfig tunes the chunked parallel hasher in the upload
// pipeline (spec §4.G).
type ParallelHashConfig struct {
	// ChunkSize is the size in bytes of each chunk hashed
	// independently before being combined into the outer digest.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// ParallelThreshold is the smallest file size, in bytes, worth
	// splitting into chunks; smaller files are hashed directly.
	ParallelThreshold int64 `yaml:"parallel_threshold" json:"parallel_threshold"`
	// MaxThreads bounds the number of concurrent chunk hashers.
	MaxThreads int `yaml:"max_threads" json:"max_threads"`
}

// maxHashThreads mirrors the reference implementation's hard ceiling
// on concurrent hashers regardless of CPU count.
const maxHashThreads = 16

// DefaultParallelHashConfig sizes max threads to the host's available
// parallelism, capped at 16, with 4 MiB chunks above a 16 MiB
// threshold.
func DefaultParallelHashConfig() ParallelHashConfig {
	threads := runtime.GOMAXPROCS(0)
	if threads > maxHashThreads {
		threads = maxHashThreads
	}
	if threads < 1 {
		threads = 1
	}
	return ParallelHashConfig{
		ChunkSize:         4 * 1024 * 1024,
		ParallelThreshold: 16 * 1024 * 1024,
		MaxThreads:        threads,
	}
}

// HighThroughputParallelHashConfig favors larger chunks and a lower
// threshold for parallelism, using the full thread ceiling.
func HighThroughputParallelHashConfig() ParallelHashConfig {
	return ParallelHashConfig{
		ChunkSize:         8 * 1024 * 1024,
		ParallelThreshold: 4 * 1024 * 1024,
		MaxThreads:        maxHashThreads,
	}
}

// LowMemoryParallelHashConfig favors small chunks and a high
// threshold, for constrained environments.
func LowMemoryParallelHashConfig() ParallelHashConfig {
	return ParallelHashConfig{
		ChunkSize:         1024 * 1024,
		ParallelThreshold: 64 * 1024 * 1024,
		MaxThreads:        4,
	}
}

// SingleThreadedParallelHashConfig disables chunk parallelism
// entirely; every file is hashed in one pass.
func SingleThreadedParallelHashConfig() ParallelHashConfig {
	return ParallelHashConfig{
		ChunkSize:         1024 * 1024,
		ParallelThreshold: 1<<63 - 1,
		MaxThreads:        1,
	}
}

// UploadPipelineConfig bounds the upload pipeline's own concurrency,
// independent of per-file hashing parallelism.
type UploadPipelineConfig struct {
	// MaxConcurrentUploads bounds simultaneous in-flight object store
	// writes.
	MaxConcurrentUploads int `yaml:"max_concurrent_uploads" json:"max_concurrent_uploads"`
	// MaxRetries is how many times a transient storage failure is
	// retried before becoming permanent.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
}

// DefaultUploadPipelineConfig allows 8 concurrent uploads with up to 3
// retries on transient failures.
func DefaultUploadPipelineConfig() UploadPipelineConfig {
	return UploadPipelineConfig{
		MaxConcurrentUploads: 8,
		MaxRetries:           3,
	}
}
