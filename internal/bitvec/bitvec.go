// Package bitvec defines a fixed-length bit vector used to flag lights by
// their global index.
package bitvec

import "math/bits"

// V is a bit vector. The zero value has length 0.
type V struct {
	s []uint64
	n int
}

// Reset resizes the vector to n bits, all unset. The backing storage is
// reused when large enough.
func (v *V) Reset(n int) {
	words := (n + 63) / 64
	if cap(v.s) < words {
		v.s = make([]uint64, words)
	} else {
		v.s = v.s[:words]
		clear(v.s)
	}
	v.n = n
}

// Len returns the number of bits in the vector.
func (v *V) Len() int { return v.n }

// Set sets a given bit.
func (v *V) Set(index int) {
	v.s[index/64] |= 1 << (index & 63)
}

// Unset unsets a given bit.
func (v *V) Unset(index int) {
	v.s[index/64] &^= 1 << (index & 63)
}

// IsSet checks whether a given bit is set. Out of range indices are unset.
func (v *V) IsSet(index int) bool {
	if index < 0 || index >= v.n {
		return false
	}
	return v.s[index/64]&(1<<(index&63)) != 0
}

// Count returns the number of set bits.
func (v *V) Count() int {
	c := 0
	for _, w := range v.s {
		c += bits.OnesCount64(w)
	}
	return c
}
