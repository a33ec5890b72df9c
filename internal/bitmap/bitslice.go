// Package bitmap implements the tombstone bit array over a memory-mapped
// region, plus the buffered-update wrapper that lets a single writer flip
// bits while readers keep querying the freshest state.
package bitmap

import (
	"math/bits"

	"github.com/iamNilotpal/facet/internal/mmapx"
)

const wordBits = 64

// BitSlice is a fixed-size bit array viewed over a byte region. The region
// length must be a multiple of the machine word size; build code rounds the
// file length up accordingly.
type BitSlice struct {
	words []uint64
}

// NewBitSlice wraps a word-rounded byte region as a bit array.
func NewBitSlice(data []byte) BitSlice {
	return BitSlice{words: mmapx.WordsOf(data)}
}

// Len returns the capacity in bits.
func (b BitSlice) Len() int {
	return len(b.words) * wordBits
}

// Get returns bit i. The caller must keep i < Len.
func (b BitSlice) Get(i int) bool {
	return b.words[i/wordBits]&(1<<(i%wordBits)) != 0
}

// Set writes bit i. The caller must keep i < Len.
func (b BitSlice) Set(i int, v bool) {
	if v {
		b.words[i/wordBits] |= 1 << (i % wordBits)
	} else {
		b.words[i/wordBits] &^= 1 << (i % wordBits)
	}
}

// CountOnes returns the number of set bits.
func (b BitSlice) CountOnes() int {
	count := 0
	for _, w := range b.words {
		count += bits.OnesCount64(w)
	}
	return count
}

// WordLengthFor returns the byte length of a bit array holding at least
// numBits bits: rounded up to whole bytes, then to a multiple of the machine
// word size.
func WordLengthFor(numBits int) int {
	numBytes := (numBits + 7) / 8
	const wordSize = wordBits / 8
	return (numBytes + wordSize - 1) / wordSize * wordSize
}
