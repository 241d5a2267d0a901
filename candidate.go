package prime

import (
	"fmt"
)

// Bits contributed by each word drawn from a WordSource.
const chunkBits = 32

// GenerateCandidate returns a random odd integer of exactly bits bits. Random
// 32-bit chunks are concatenated until bits is covered, the result is masked
// to bits bits with the top bit forced on, and an even result is moved to the
// neighbouring odd value that keeps the bit length.
func GenerateCandidate(source WordSource, bits int) (Int, error) {
	if bits < 2 {
		return Int{}, fmt.Errorf("%w: requested %d", ErrBitLengthTooSmall, bits)
	}
	var candidate Int
	for shift := 0; shift < bits; shift += chunkBits {
		candidate = candidate.Add(NewUint64(uint64(source.Uint32())).Lsh(uint(shift)))
	}
	top := one.Lsh(uint(bits - 1))
	mask := top.Lsh(1).Sub(one)
	candidate = candidate.And(mask).Or(top)
	if !candidate.IsOdd() {
		if lower := candidate.Sub(one); lower.BitLen() == bits {
			return lower, nil
		}
		candidate = candidate.Add(one)
	}
	return candidate, nil
}
