// Package minhash implements the spec's 32-bit MinHash similarity digest:
// k independent affine hash functions over 32-bit shingle hashes, each
// tracked as a running minimum modulo a fixed prime.
//
// The shingle hash is the literal "32-bit XxHash" the spec names —
// github.com/pierrec/xxHash/xxHash32, grounded via the pierrec org already
// present in the pack (github.com/pierrec/lz4/v4). cespare/xxhash/v2, also
// pack-present, only implements the 64-bit XXH64 variant and does not fit.
package minhash

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/pierrec/xxHash/xxHash32"
)

// primeModulus is the modulus the spec fixes for the affine hash family.
const primeModulus = 4294967291

// MinHash32 computes a k-register MinHash digest over length-w shingles of
// data, using coefficients drawn from a PRNG seeded with seed.
type MinHash32 struct {
	data        []byte
	numHashes   int
	shingleSize int
	a, b        []uint32
}

// New returns a MinHash32 configured with numHashes registers, shingle
// length shingleSize, and the given seed.
func New(data []byte, numHashes, shingleSize int, seed uint64) *MinHash32 {
	rng := rand.New(rand.NewSource(int64(seed)))
	a := make([]uint32, numHashes)
	b := make([]uint32, numHashes)
	for i := 0; i < numHashes; i++ {
		// a in [1, 2^32), b in [0, 2^32), per spec §4.5.
		a[i] = 1 + rng.Uint32()%^uint32(0)
		b[i] = rng.Uint32()
	}
	return &MinHash32{
		data:        data,
		numHashes:   numHashes,
		shingleSize: shingleSize,
		a:           a,
		b:           b,
	}
}

// Hash computes the k running minima, or nil if data is shorter than the
// shingle size (the digest is undefined per spec §4.5 step 4).
func (m *MinHash32) Hash() []uint32 {
	if len(m.data) < m.shingleSize {
		return nil
	}
	mins := make([]uint32, m.numHashes)
	for i := range mins {
		mins[i] = ^uint32(0)
	}
	for start := 0; start+m.shingleSize <= len(m.data); start++ {
		shingle := m.data[start : start+m.shingleSize]
		h := xxHash32.Checksum(shingle, 0)
		for i := 0; i < m.numHashes; i++ {
			v := uint32((uint64(m.a[i])*uint64(h) + uint64(m.b[i])) % primeModulus)
			if v < mins[i] {
				mins[i] = v
			}
		}
	}
	return mins
}

// Hexdigest returns the k 8-hex-char big-endian registers concatenated, or
// "" if the digest is undefined.
func (m *MinHash32) Hexdigest() string {
	mins := m.Hash()
	if mins == nil {
		return ""
	}
	var sb strings.Builder
	for _, v := range mins {
		fmt.Fprintf(&sb, "%08x", v)
	}
	return sb.String()
}

// JaccardSimilarity estimates the Jaccard agreement between two digests of
// equal register count as the fraction of positions that agree.
func JaccardSimilarity(a, b []uint32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	agree := 0
	for i := range a {
		if a[i] == b[i] {
			agree++
		}
	}
	return float64(agree) / float64(len(a))
}
