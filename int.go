package prime

// Int is a signed arbitrary-precision integer held as a sign and a magnitude.
// Values are immutable: every operation returns a new Int, so an Int can be
// copied and shared between goroutines freely. The zero value is 0.
type Int struct {
	mag nat
	neg bool
}

var (
	one = NewInt(1)
	two = NewInt(2)
)

// Builds an Int from a magnitude, normalizing the sign of zero to positive.
func makeInt(mag nat, neg bool) Int {
	mag = mag.mustNorm()
	if mag.isZero() {
		neg = false
	}
	return Int{mag: mag, neg: neg}
}

// Returns a new Int with the value of v.
func NewInt(v int64) Int {
	u := uint64(v)
	if v < 0 {
		u = -u
	}
	return makeInt(nat{u}, v < 0)
}

// Returns a new non-negative Int with the value of v.
func NewUint64(v uint64) Int {
	return makeInt(nat{v}, false)
}

// Returns the magnitude, reading the nil magnitude of the zero value as 0.
func (x Int) abs() nat {
	if len(x.mag) == 0 {
		return natZero
	}
	return x.mag
}

// Returns -1, 0, or +1 depending on the sign of x.
func (x Int) Sign() int {
	switch {
	case x.IsZero():
		return 0
	case x.neg:
		return -1
	default:
		return 1
	}
}

func (x Int) IsZero() bool {
	return x.abs().isZero()
}

// Bool reports whether x is non-zero; the sign is irrelevant.
func (x Int) Bool() bool {
	return !x.IsZero()
}

func (x Int) IsOdd() bool {
	return x.abs()[0]&1 == 1
}

// Returns -x.
func (x Int) Neg() Int {
	return makeInt(x.abs(), !x.neg)
}

// Returns |x|.
func (x Int) Abs() Int {
	return makeInt(x.abs(), false)
}

// Returns -1, 0, or +1 as x is less than, equal to, or greater than y.
func (x Int) Cmp(y Int) int {
	switch {
	case x.neg && !y.neg:
		return -1
	case !x.neg && y.neg:
		return 1
	case x.neg:
		// Both negative: the larger magnitude is the smaller value.
		return y.abs().cmp(x.abs())
	default:
		return x.abs().cmp(y.abs())
	}
}

// Equal reports whether x and y have the same sign and magnitude.
func (x Int) Equal(y Int) bool {
	return x.neg == y.neg && x.abs().cmp(y.abs()) == 0
}

func (x Int) Less(y Int) bool      { return x.Cmp(y) < 0 }
func (x Int) LessEq(y Int) bool    { return x.Cmp(y) <= 0 }
func (x Int) Greater(y Int) bool   { return x.Cmp(y) > 0 }
func (x Int) GreaterEq(y Int) bool { return x.Cmp(y) >= 0 }

// Returns x + y.
func (x Int) Add(y Int) Int {
	a, b := x.abs(), y.abs()
	if x.neg == y.neg {
		return makeInt(a.add(b), x.neg)
	}
	// Opposite signs: the larger magnitude decides the sign.
	if a.cmp(b) >= 0 {
		return makeInt(a.sub(b), x.neg)
	}
	return makeInt(b.sub(a), y.neg)
}

// Returns x - y.
func (x Int) Sub(y Int) Int {
	return x.Add(y.Neg())
}

// Returns x * y.
func (x Int) Mul(y Int) Int {
	return makeInt(x.abs().mul(y.abs()), x.neg != y.neg)
}

// Returns x mod m without performing a division. The result takes the sign of
// the divisor: it lies in [0, m) for positive m and in (m, 0] for negative m.
// ErrDivisionByZero is returned if m is zero.
func (x Int) Mod(m Int) (Int, error) {
	if m.IsZero() {
		return Int{}, ErrDivisionByZero
	}
	return x.mod(m), nil
}

// Mod without the zero divisor check.
func (x Int) mod(m Int) Int {
	r := x
	if !m.neg {
		for r.neg {
			r = r.Add(m.Lsh(maxShift(r.abs(), m.abs())))
		}
		return makeInt(r.abs().clone().reduce(m.abs()), false)
	}
	for r.Sign() > 0 {
		r = r.Add(m.Lsh(maxShift(r.abs(), m.abs())))
	}
	// r is now in (-inf, 0]; subtracting shifted copies of the negative
	// divisor shrinks the magnitude until r > m.
	return makeInt(r.abs().clone().reduce(m.abs()), true)
}

// Returns x << n; the sign is unaffected.
func (x Int) Lsh(n uint) Int {
	return makeInt(x.abs().shl(n), x.neg)
}

// Returns the magnitude of x shifted right by n bits with the sign of x. The
// shift is logical on the magnitude, never arithmetic.
func (x Int) Rsh(n uint) Int {
	return makeInt(x.abs().shr(n), x.neg)
}

// Returns op applied to the magnitudes of x and y. The result is always
// non-negative.
func (x Int) Bitwise(op BitOp, y Int) Int {
	return makeInt(x.abs().bitwise(op, y.abs()), false)
}

func (x Int) And(y Int) Int { return x.Bitwise(BitAnd, y) }
func (x Int) Or(y Int) Int  { return x.Bitwise(BitOr, y) }
func (x Int) Xor(y Int) Int { return x.Bitwise(BitXor, y) }

// Returns the number of significant bits in |x|; zero has a bit length of 0.
func (x Int) BitLen() int {
	return x.abs().bitLen()
}

// Returns the value (0 or 1) of bit i of |x|.
func (x Int) Bit(i uint) uint {
	return x.abs().bit(i)
}

// Returns the number of consecutive least-significant zero bits of |x|.
func (x Int) TrailingZeroBits() uint {
	return x.abs().trailingZeros()
}

// Returns the number of set bits in |x|.
func (x Int) PopCount() int {
	return x.abs().popcount()
}

// IsInt64 reports whether x can be represented as an int64.
func (x Int) IsInt64() bool {
	mag := x.abs()
	if len(mag) > 1 {
		return false
	}
	if x.neg {
		return mag[0] <= 1<<63
	}
	return mag[0] < 1<<63
}

// Returns the int64 value of x; the result is undefined if !x.IsInt64().
func (x Int) Int64() int64 {
	v := int64(x.abs()[0])
	if x.neg {
		return -v
	}
	return v
}
