// Package bloom implements the murmur3 bloom filter stored in companion
// sidecars, so consumers can skip files that cannot contain a user.
package bloom

import (
	"math"

	"github.com/spaolacci/murmur3"
)

// Algorithm names the hashing scheme recorded next to serialized filters.
const Algorithm = "murmur3_128"

// Filter is a bloom filter using double hashing over a murmur3 128-bit hash.
// It never reports false negatives. A Filter is not safe for concurrent use.
type Filter struct {
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// New creates a filter with at least numBits bits and numHashes hash functions.
func New(numBits, numHashes int) *Filter {
	if numBits <= 0 {
		numBits = 1024
	}
	if numHashes <= 0 {
		numHashes = 7
	}
	words := (numBits + 63) / 64
	return &Filter{
		bits:      make([]uint64, words),
		numBits:   uint64(words * 64),
		numHashes: uint64(numHashes),
	}
}

// NewWithEstimates sizes a filter for expectedItems at the target false
// positive rate.
func NewWithEstimates(expectedItems int, targetFPR float64) *Filter {
	return New(OptimalParameters(expectedItems, targetFPR))
}

// OptimalParameters returns m = -n ln(p) / ln(2)^2 bits and k = (m/n) ln(2) hashes.
func OptimalParameters(expectedItems int, targetFPR float64) (numBits, numHashes int) {
	if expectedItems <= 0 {
		expectedItems = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}
	n := float64(expectedItems)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)

	numBits = max(int(math.Ceil(m)), 64)
	numHashes = max(int(math.Ceil(m/n*math.Ln2)), 1)
	return numBits, numHashes
}

// Add inserts item.
func (f *Filter) Add(item []byte) {
	h1, h2 := murmur3.Sum128(item)
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
	f.count++
}

// AddString inserts s.
func (f *Filter) AddString(s string) {
	f.Add([]byte(s))
}

// Contains reports whether item may have been added.
func (f *Filter) Contains(item []byte) bool {
	h1, h2 := murmur3.Sum128(item)
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// ContainsString reports whether s may have been added.
func (f *Filter) ContainsString(s string) bool {
	return f.Contains([]byte(s))
}

// NumBits returns the number of bits in the filter.
func (f *Filter) NumBits() int { return int(f.numBits) }

// NumHashes returns the number of hash functions.
func (f *Filter) NumHashes() int { return int(f.numHashes) }

// Count returns the number of Add calls.
func (f *Filter) Count() uint64 { return f.count }

// FalsePositiveRate estimates (1 - e^(-kn/m))^k for the current fill.
func (f *Filter) FalsePositiveRate() float64 {
	if f.count == 0 {
		return 0
	}
	k := float64(f.numHashes)
	return math.Pow(1-math.Exp(-k*float64(f.count)/float64(f.numBits)), k)
}
