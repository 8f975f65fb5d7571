package common

import "math/bits"

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Ctz returns the number of trailing zero bits in v, or 32 when v is zero.
// Used to walk the set bits of light-type masks from lowest to highest.
func Ctz(v uint32) uint32 {
	return uint32(bits.TrailingZeros32(v))
}
