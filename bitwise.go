package prime

import (
	"fmt"
)

// BitOp identifies a word-wise bitwise operation on magnitudes.
type BitOp int

const (
	BitAnd BitOp = iota
	BitOr
	BitXor
)

func (op BitOp) String() string {
	switch op {
	case BitAnd:
		return "and"
	case BitOr:
		return "or"
	case BitXor:
		return "xor"
	default:
		return fmt.Sprintf("BitOp(%d)", int(op))
	}
}

// Applies the operation to a single pair of words.
func (op BitOp) apply(x, y uint64) uint64 {
	switch op {
	case BitAnd:
		return x & y
	case BitOr:
		return x | y
	case BitXor:
		return x ^ y
	default:
		panic(fmt.Sprintf("prime: unsupported bit operation %v", op))
	}
}

// Returns op applied word-wise to x and y. The shorter operand is treated as
// if it were extended with zero words.
func (x nat) bitwise(op BitOp, y nat) nat {
	n := len(x)
	if len(y) > n {
		n = len(y)
	}
	z := make(nat, n)
	for i := range z {
		z[i] = op.apply(x.word(i), y.word(i))
	}
	return z.norm()
}
