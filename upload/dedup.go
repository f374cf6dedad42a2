package upload

import (
	"math"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"
)

// DedupFilter is a Bloom filter used as a cheap pre-check before
// spending an upload slot on content that has very likely already
// been stored under the same content hash. A filter hit still
// requires a Head() confirmation against the object store — it is
// a "maybe seen" accelerator, never an authority.
type DedupFilter struct {
	mu   sync.Mutex
	bits *bitset.BitSet
	m    uint
	k    uint
}

// NewDedupFilter sizes a filter for expectedItems entries at the
// given falsePositiveRate (e.g. 0.01 for 1%).
func NewDedupFilter(expectedItems int, falsePositiveRate float64) *DedupFilter {
	if expectedItems < 1 {
		expectedItems = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	m := optimalBits(expectedItems, falsePositiveRate)
	k := optimalHashCount(m, expectedItems)

	return &DedupFilter{
		bits: bitset.New(m),
		m:    m,
		k:    k,
	}
}

func optimalBits(n int, p float64) uint {
	m := -float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)
	if m < 8 {
		m = 8
	}
	return uint(math.Ceil(m))
}

func optimalHashCount(m uint, n int) uint {
	k := float64(m) / float64(n) * math.Ln2
	if k < 1 {
		k = 1
	}
	return uint(math.Round(k))
}

// indices returns the k bit positions for contentHash using double
// hashing: h1 + i*h2 mod m, the standard Kirsch-Mitzenmacher
// construction that needs only two independent hashes.
func (f *DedupFilter) indices(contentHash string) []uint {
	h1 := xxhash.Sum64String(contentHash)
	h2 := xxhash.Sum64(append([]byte(contentHash), 0x1))

	out := make([]uint, f.k)
	for i := uint(0); i < f.k; i++ {
		combined := h1 + uint64(i)*h2
		out[i] = uint(combined % uint64(f.m))
	}
	return out
}

// Add records contentHash as seen.
func (f *DedupFilter) Add(contentHash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, idx := range f.indices(contentHash) {
		f.bits.Set(idx)
	}
}

// MightContain reports whether contentHash has possibly been added
// before. False means definitely not seen; true means maybe seen and
// callers must confirm against the authoritative store.
func (f *DedupFilter) MightContain(contentHash string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, idx := range f.indices(contentHash) {
		if !f.bits.Test(idx) {
			return false
		}
	}
	return true
}

// Reset clears every bit.
func (f *DedupFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bits.ClearAll()
}
