package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/skylock-oss/skylock/config"
)

// HashData returns the hex SHA-256 of data, splitting it into
// cfg.ChunkSize chunks hashed concurrently once data is at least
// cfg.ParallelThreshold bytes. Small payloads are hashed directly.
//
// The chunked and sequential paths MUST produce the same digest for
// data under the threshold — only files at or above ParallelThreshold
// take the chunked path, so there is never a case where the same
// bytes are hashed both ways.
func HashData(data []byte, cfg config.ParallelHashConfig) string {
	if int64(len(data)) < cfg.ParallelThreshold || cfg.ChunkSize <= 0 {
		return hashSequential(data)
	}
	return hex.EncodeToString(hashParallel(data, cfg))
}

func hashSequential(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hashParallel splits data into fixed-size chunks, hashes each chunk
// concurrently (bounded by cfg.MaxThreads), then combines the chunk
// digests with a flat outer SHA-256 over their concatenation in
// order. This exact combine step must be used by both the writer and
// any later verifier, since it is not a standard Merkle root.
func hashParallel(data []byte, cfg config.ParallelHashConfig) [32]byte {
	numChunks := (len(data) + cfg.ChunkSize - 1) / cfg.ChunkSize
	chunkHashes := make([][32]byte, numChunks)

	maxThreads := cfg.MaxThreads
	if maxThreads < 1 {
		maxThreads = 1
	}

	sem := make(chan struct{}, maxThreads)
	var wg sync.WaitGroup

	for i := 0; i < numChunks; i++ {
		start := i * cfg.ChunkSize
		end := start + cfg.ChunkSize
		if end > len(data) {
			end = len(data)
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i, start, end int) {
			defer wg.Done()
			defer func() { <-sem }()
			chunkHashes[i] = sha256.Sum256(data[start:end])
		}(i, start, end)
	}
	wg.Wait()

	return combineChunkHashes(chunkHashes)
}

func combineChunkHashes(chunkHashes [][32]byte) [32]byte {
	if len(chunkHashes) == 1 {
		return chunkHashes[0]
	}
	combined := sha256.New()
	for _, h := range chunkHashes {
		combined.Write(h[:])
	}
	var out [32]byte
	copy(out[:], combined.Sum(nil))
	return out
}
