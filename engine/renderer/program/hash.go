package program

import "encoding/binary"

// SuperFastHash is Paul Hsieh's incremental 32-bit hash. Passing the result of
// one call as the seed of the next folds several inputs into one key. A zero
// seed starts from the input length, as in Hsieh's original. Empty input
// hashes to 0.
//
// Parameters:
//   - data: bytes to hash
//   - hash: the running hash, 0 for the first call
//
// Returns:
//   - uint32: the new running hash
func SuperFastHash(data []byte, hash uint32) uint32 {
	n := len(data)
	if n == 0 {
		return 0
	}
	if hash == 0 {
		hash = uint32(n)
	}

	rem := n & 3
	i := 0
	for blocks := n >> 2; blocks > 0; blocks-- {
		hash += uint32(binary.LittleEndian.Uint16(data[i:]))
		tmp := uint32(binary.LittleEndian.Uint16(data[i+2:]))<<11 ^ hash
		hash = hash<<16 ^ tmp
		i += 4
		hash += hash >> 11
	}

	// Trailing bytes are read as signed chars.
	switch rem {
	case 3:
		hash += uint32(binary.LittleEndian.Uint16(data[i:]))
		hash ^= hash << 16
		hash ^= uint32(int32(int8(data[i+2]))) << 18
		hash += hash >> 11
	case 2:
		hash += uint32(binary.LittleEndian.Uint16(data[i:]))
		hash ^= hash << 11
		hash += hash >> 17
	case 1:
		hash += uint32(int32(int8(data[i])))
		hash ^= hash << 10
		hash += hash >> 1
	}

	hash ^= hash << 3
	hash += hash >> 5
	hash ^= hash << 4
	hash += hash >> 17
	hash ^= hash << 25
	hash += hash >> 6
	return hash
}

// Key folds the IDs of the non-nil shaders into a program cache key, in
// stage order. A key of 0 means no shader is set.
//
// Parameters:
//   - shaders: the active shader per stage
//
// Returns:
//   - uint32: the cache key
func Key(shaders Stages) uint32 {
	var key uint32
	var id [4]byte
	for _, s := range shaders {
		if s == nil {
			continue
		}
		binary.LittleEndian.PutUint32(id[:], s.ID())
		key = SuperFastHash(id[:], key)
	}
	return key
}
