package config

// CompressionConfig tunes the zstd verifier (spec §4.D).
type CompressionConfig struct {
	// Level is the zstd compression level, 1-22.
	Level int `yaml:"level" json:"level"`
	// MinSize is the smallest input, in bytes, worth attempting to
	// compress; smaller inputs are stored as-is.
	MinSize int64 `yaml:"min_size" json:"min_size"`
	// MinRatio is the maximum acceptable compressed/original size
	// ratio; compression is discarded if it doesn't beat this (0.95
	// means at least 5% savings are required).
	MinRatio float64 `yaml:"min_ratio" json:"min_ratio"`
}

// DefaultCompressionConfig matches the reference tuning: zstd level 3,
// a 10 MiB floor, and a 0.95 minimum ratio.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Level:    3,
		MinSize:  10 * 1024 * 1024,
		MinRatio: 0.95,
	}
}
