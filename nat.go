package prime

import (
	"errors"
	"fmt"
	"math/bits"
)

const (
	// The number of bits in each magnitude word.
	wordBits = 64
)

var (
	// Raised (as a panic) when a magnitude breaks the no-leading-zero-word
	// invariant; this is an internal fault and never returned to callers.
	errMalformedMagnitude = errors.New("malformed magnitude")
	// Raised (as a panic) when an unsigned subtraction would go negative.
	errMagnitudeUnderflow = errors.New("magnitude underflow")
	// The canonical zero magnitude. Never modified.
	natZero = nat{0}
)

// nat is the unsigned magnitude of an Int, stored as 64-bit words with the
// least-significant word first. A normalized nat has at least one word and no
// most-significant zero words, except for the single word zero value.
type nat []uint64

// Trim most-significant zero words, keeping at least one word.
func (z nat) norm() nat {
	i := len(z)
	for i > 1 && z[i-1] == 0 {
		i--
	}
	if i == 0 {
		return nat{0}
	}
	return z[:i]
}

// Panics if z is not normalized.
func (z nat) mustNorm() nat {
	if len(z) == 0 {
		panic(fmt.Errorf("%w: empty word sequence", errMalformedMagnitude))
	}
	if len(z) > 1 && z[len(z)-1] == 0 {
		panic(fmt.Errorf("%w: %d words with a zero most-significant word", errMalformedMagnitude, len(z)))
	}
	return z
}

func (z nat) isZero() bool {
	return len(z) == 1 && z[0] == 0
}

// Returns the word at index i, or zero if i is beyond the end of z.
func (z nat) word(i int) uint64 {
	if i < len(z) {
		return z[i]
	}
	return 0
}

func (z nat) clone() nat {
	c := make(nat, len(z))
	copy(c, z)
	return c
}

// Returns -1, 0, or +1 as x is less than, equal to, or greater than y. A
// magnitude with fewer words is always the smaller.
func (x nat) cmp(y nat) int {
	if len(x) != len(y) {
		if len(x) < len(y) {
			return -1
		}
		return 1
	}
	for i := len(x) - 1; i >= 0; i-- {
		if x[i] != y[i] {
			if x[i] < y[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Returns x + y.
func (x nat) add(y nat) nat {
	if len(x) < len(y) {
		x, y = y, x
	}
	z := make(nat, len(x)+1)
	var carry uint64
	for i := range y {
		z[i], carry = bits.Add64(x[i], y[i], carry)
	}
	for i := len(y); i < len(x); i++ {
		z[i], carry = bits.Add64(x[i], 0, carry)
	}
	z[len(x)] = carry
	return z.norm()
}

// Returns x - y; x must not be less than y.
func (x nat) sub(y nat) nat {
	if x.cmp(y) < 0 {
		panic(fmt.Errorf("%w: subtrahend has %d bits, minuend has %d bits", errMagnitudeUnderflow, y.bitLen(), x.bitLen()))
	}
	z := make(nat, len(x))
	var borrow uint64
	for i := range y {
		z[i], borrow = bits.Sub64(x[i], y[i], borrow)
	}
	for i := len(y); i < len(x); i++ {
		z[i], borrow = bits.Sub64(x[i], 0, borrow)
	}
	return z.norm()
}

// Returns x << n.
func (x nat) shl(n uint) nat {
	if x.isZero() {
		return nat{0}
	}
	words, s := int(n/wordBits), n%wordBits
	z := make(nat, len(x)+words+1)
	// Work down from the most-significant word so that bits shifted out of
	// a word land in the word above before it is overwritten.
	z[len(x)+words] = x[len(x)-1] >> (wordBits - s)
	for i := len(x) - 1; i > 0; i-- {
		z[i+words] = x[i]<<s | x[i-1]>>(wordBits-s)
	}
	z[words] = x[0] << s
	return z.norm()
}

// Returns x >> n; the shift is logical.
func (x nat) shr(n uint) nat {
	words, s := n/wordBits, n%wordBits
	if words >= uint(len(x)) {
		return nat{0}
	}
	src := x[words:]
	z := make(nat, len(src))
	for i := 0; i < len(src)-1; i++ {
		z[i] = src[i]>>s | src[i+1]<<(wordBits-s)
	}
	z[len(src)-1] = src[len(src)-1] >> s
	return z.norm()
}

// Returns the 0-based index of the highest set bit; x must not be zero.
func (x nat) msb() uint {
	if x.isZero() {
		panic("prime: msb of zero magnitude")
	}
	top := len(x) - 1
	return uint(top*wordBits + bits.Len64(x[top]) - 1)
}

// Returns the number of significant bits in x, or 0 if x is zero.
func (x nat) bitLen() int {
	if x.isZero() {
		return 0
	}
	return int(x.msb()) + 1
}

// Returns the total number of set bits in x.
func (x nat) popcount() int {
	count := 0
	for _, w := range x {
		count += bits.OnesCount64(w)
	}
	return count
}

// Returns the number of consecutive zero bits from the least-significant end,
// or 0 if x is zero.
func (x nat) trailingZeros() uint {
	for i, w := range x {
		if w != 0 {
			return uint(i*wordBits + bits.TrailingZeros64(w))
		}
	}
	return 0
}

// Returns the value (0 or 1) of bit i.
func (x nat) bit(i uint) uint {
	w := i / wordBits
	if w >= uint(len(x)) {
		return 0
	}
	return uint(x[w]>>(i%wordBits)) & 1
}

// Returns x * y. The operand with fewer set bits drives a shift-and-add loop
// so the number of additions is minimised.
func (x nat) mul(y nat) nat {
	if x.isZero() || y.isZero() {
		return nat{0}
	}
	scan, other := y, x
	if x.popcount() < y.popcount() {
		scan, other = x, y
	}
	z := make(nat, len(x)+len(y)+1)
	for i, w := range scan {
		for w != 0 {
			z.addShifted(other, uint(i*wordBits+bits.TrailingZeros64(w)))
			w &= w - 1
		}
	}
	return z.norm()
}

// Adds x << n into z in place. z must be long enough to hold the sum.
func (z nat) addShifted(x nat, n uint) {
	words, s := int(n/wordBits), n%wordBits
	var carry, spill uint64
	i := 0
	for ; i < len(x); i++ {
		shifted := x[i]<<s | spill
		spill = x[i] >> (wordBits - s)
		z[words+i], carry = bits.Add64(z[words+i], shifted, carry)
	}
	for j := words + i; spill != 0 || carry != 0; j++ {
		z[j], carry = bits.Add64(z[j], spill, carry)
		spill = 0
	}
}

// Subtracts x << n from z in place. z must not be less than x << n.
func (z nat) subShifted(x nat, n uint) {
	words, s := int(n/wordBits), n%wordBits
	var borrow, spill uint64
	i := 0
	for ; i < len(x); i++ {
		shifted := x[i]<<s | spill
		spill = x[i] >> (wordBits - s)
		z[words+i], borrow = bits.Sub64(z[words+i], shifted, borrow)
	}
	for j := words + i; spill != 0 || borrow != 0; j++ {
		if j >= len(z) {
			panic(fmt.Errorf("%w: shifted subtrahend exceeds minuend", errMagnitudeUnderflow))
		}
		z[j], borrow = bits.Sub64(z[j], spill, borrow)
		spill = 0
	}
}

// Returns the largest shift k such that y << k stays strictly below x's top
// bit: msb(x) - msb(y) - 1, floored at zero, and zero whenever x < y.
func maxShift(x, y nat) uint {
	if x.cmp(y) < 0 {
		return 0
	}
	if gap := x.msb() - y.msb(); gap > 1 {
		return gap - 1
	}
	return 0
}

// Reduces x by repeatedly subtracting the largest fitting shift of m until
// x < m. The result shares storage with x, which is consumed.
func (x nat) reduce(m nat) nat {
	for x.cmp(m) >= 0 {
		x.subShifted(m, maxShift(x, m))
		x = x.norm()
	}
	return x
}
