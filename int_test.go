package prime_test

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/memes/prime"
)

func TestNewInt(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 42, -42, math.MaxInt64, math.MinInt64} {
		t.Run(fmt.Sprintf("v=%d", v), func(t *testing.T) {
			x := prime.NewInt(v)
			if !x.IsInt64() {
				t.Errorf("IsInt64 returned false for %d", v)
			}
			if actual := x.Int64(); actual != v {
				t.Errorf("expected %d got %d", v, actual)
			}
			if actual := toBig(t, x); actual.Int64() != v {
				t.Errorf("math/big oracle: expected %d got %s", v, actual)
			}
		})
	}
}

// The zero value, constructed zero, and results that cancel to zero must all
// compare equal; negative zero is never produced.
func TestZero(t *testing.T) {
	var zero prime.Int
	results := []prime.Int{
		prime.NewInt(0),
		prime.NewInt(0).Neg(),
		prime.NewInt(7).Sub(prime.NewInt(7)),
		prime.NewInt(-7).Add(prime.NewInt(7)),
		prime.NewInt(-7).Mul(prime.NewInt(0)),
		prime.NewInt(-1).Rsh(1),
		prime.NewInt(-5).And(prime.NewInt(2)),
	}
	for i, actual := range results {
		if !zero.Equal(actual) || actual.Sign() != 0 || actual.Bool() {
			t.Errorf("case %d: expected canonical zero got %s (sign %d)", i, actual, actual.Sign())
		}
	}
	if zero.BitLen() != 0 {
		t.Errorf("expected zero bit length got %d", zero.BitLen())
	}
	if zero.Text() != "0" {
		t.Errorf("expected \"0\" got %q", zero.Text())
	}
}

func TestAddConcrete(t *testing.T) {
	testIntEqual(t, prime.NewInt(2), prime.NewInt(5).Add(prime.NewInt(-3)))
	testIntEqual(t, prime.NewInt(-2), prime.NewInt(-5).Add(prime.NewInt(3)))
	testIntEqual(t, prime.NewInt(-8), prime.NewInt(-5).Add(prime.NewInt(-3)))
	testIntEqual(t, prime.NewInt(8), prime.NewInt(5).Sub(prime.NewInt(-3)))
	testIntEqual(t, prime.NewInt(-8), prime.NewInt(-5).Sub(prime.NewInt(3)))
}

func TestAddSubIdentities(t *testing.T) {
	rng := newTestRand()
	zero := prime.NewInt(0)
	for i := 0; i < TEST_PROPERTY_ITERATIONS; i++ {
		a := randomInt(rng, true)
		b := randomInt(rng, true)
		if actual := a.Add(b).Sub(b); !actual.Equal(a) {
			t.Errorf("(%s + %s) - %s: expected %s got %s", a, b, b, a, actual)
		}
		if actual := a.Add(a.Neg()); !actual.Equal(zero) {
			t.Errorf("%s + -%s: expected 0 got %s", a, a, actual)
		}
		if !a.Add(b).Equal(b.Add(a)) {
			t.Errorf("addition is not commutative for %s and %s", a, b)
		}
	}
}

func TestArithmeticMatchesBig(t *testing.T) {
	rng := newTestRand()
	for i := 0; i < TEST_PROPERTY_ITERATIONS; i++ {
		a := randomInt(rng, true)
		b := randomInt(rng, true)
		bigA, bigB := toBig(t, a), toBig(t, b)
		if expected, actual := new(big.Int).Add(bigA, bigB), toBig(t, a.Add(b)); expected.Cmp(actual) != 0 {
			t.Errorf("%s + %s: expected %x got %x", a, b, expected, actual)
		}
		if expected, actual := new(big.Int).Sub(bigA, bigB), toBig(t, a.Sub(b)); expected.Cmp(actual) != 0 {
			t.Errorf("%s - %s: expected %x got %x", a, b, expected, actual)
		}
		if expected, actual := new(big.Int).Mul(bigA, bigB), toBig(t, a.Mul(b)); expected.Cmp(actual) != 0 {
			t.Errorf("%s * %s: expected %x got %x", a, b, expected, actual)
		}
		if expected, actual := bigA.Cmp(bigB), a.Cmp(b); expected != actual {
			t.Errorf("cmp(%s, %s): expected %d got %d", a, b, expected, actual)
		}
	}
}

func TestCompareOperators(t *testing.T) {
	values := []prime.Int{
		prime.NewInt(-1).Lsh(130),
		prime.NewInt(-1).Lsh(64),
		prime.NewInt(-2),
		prime.NewInt(-1),
		prime.NewInt(0),
		prime.NewInt(1),
		prime.NewInt(2),
		prime.NewInt(1).Lsh(64),
		prime.NewInt(1).Lsh(130),
	}
	for i, x := range values {
		for j, y := range values {
			if x.Equal(y) != (i == j) {
				t.Errorf("Equal(%s, %s) returned %t", x, y, x.Equal(y))
			}
			if x.Less(y) != (i < j) || x.LessEq(y) != (i <= j) {
				t.Errorf("Less/LessEq(%s, %s) inconsistent with ordering", x, y)
			}
			if x.Greater(y) != (i > j) || x.GreaterEq(y) != (i >= j) {
				t.Errorf("Greater/GreaterEq(%s, %s) inconsistent with ordering", x, y)
			}
		}
	}
}

func TestMulProperties(t *testing.T) {
	rng := newTestRand()
	for i := 0; i < TEST_PROPERTY_ITERATIONS; i++ {
		a := randomInt(rng, true)
		b := randomInt(rng, true)
		c := randomInt(rng, true)
		if !a.Mul(b).Equal(b.Mul(a)) {
			t.Errorf("multiplication is not commutative for %s and %s", a, b)
		}
		if left, right := a.Mul(b.Add(c)), a.Mul(b).Add(a.Mul(c)); !left.Equal(right) {
			t.Errorf("%s * (%s + %s): expected %s got %s", a, b, c, right, left)
		}
	}
	testIntEqual(t, prime.NewInt(-6), prime.NewInt(2).Mul(prime.NewInt(-3)))
	testIntEqual(t, prime.NewInt(6), prime.NewInt(-2).Mul(prime.NewInt(-3)))
}

func TestShift(t *testing.T) {
	rng := newTestRand()
	for i := 0; i < TEST_PROPERTY_ITERATIONS; i++ {
		a := randomInt(rng, true)
		s := rng.UintN(300)
		if actual := a.Lsh(s).Rsh(s); !actual.Equal(a) {
			t.Errorf("(%s << %d) >> %d: expected %s got %s", a, s, s, a, actual)
		}
		expected := new(big.Int).Rsh(toBig(t, a.Abs()), s)
		if actual := toBig(t, a.Abs().Rsh(s)); expected.Cmp(actual) != 0 {
			t.Errorf("|%s| >> %d: expected %x got %x", a, s, expected, actual)
		}
	}
	// Right shift is logical on the magnitude and keeps the sign.
	testIntEqual(t, prime.NewInt(-2), prime.NewInt(-5).Rsh(1))
	testIntEqual(t, prime.NewInt(-20), prime.NewInt(-5).Lsh(2))
}

func TestBitwise(t *testing.T) {
	rng := newTestRand()
	for i := 0; i < TEST_PROPERTY_ITERATIONS; i++ {
		a := randomInt(rng, false)
		b := randomInt(rng, false)
		bigA, bigB := toBig(t, a), toBig(t, b)
		if expected, actual := new(big.Int).And(bigA, bigB), toBig(t, a.And(b)); expected.Cmp(actual) != 0 {
			t.Errorf("%s & %s: expected %x got %x", a, b, expected, actual)
		}
		if expected, actual := new(big.Int).Or(bigA, bigB), toBig(t, a.Or(b)); expected.Cmp(actual) != 0 {
			t.Errorf("%s | %s: expected %x got %x", a, b, expected, actual)
		}
		if expected, actual := new(big.Int).Xor(bigA, bigB), toBig(t, a.Xor(b)); expected.Cmp(actual) != 0 {
			t.Errorf("%s ^ %s: expected %x got %x", a, b, expected, actual)
		}
	}
	// Bitwise operations act on magnitudes and are always non-negative.
	testIntEqual(t, prime.NewInt(1), prime.NewInt(-3).And(prime.NewInt(-5)))
	testIntEqual(t, prime.NewInt(7), prime.NewInt(-3).Bitwise(prime.BitOr, prime.NewInt(-5)))
}

func TestBitQueries(t *testing.T) {
	x := prime.NewInt(-1).Lsh(100)
	if actual := x.BitLen(); actual != 101 {
		t.Errorf("BitLen: expected 101 got %d", actual)
	}
	if actual := x.TrailingZeroBits(); actual != 100 {
		t.Errorf("TrailingZeroBits: expected 100 got %d", actual)
	}
	if x.Bit(100) != 1 || x.Bit(99) != 0 {
		t.Errorf("Bit: unexpected values for %s", x)
	}
	if actual := prime.NewInt(0xff).PopCount(); actual != 8 {
		t.Errorf("PopCount: expected 8 got %d", actual)
	}
	if !prime.NewInt(-3).IsOdd() || prime.NewInt(4).IsOdd() {
		t.Error("IsOdd returned an unexpected result")
	}
	if prime.NewInt(1).Lsh(64).IsInt64() || !prime.NewInt(math.MinInt64).IsInt64() {
		t.Error("IsInt64 returned an unexpected result")
	}
}

// The remainder takes the sign of the divisor: [0, m) for positive m and
// (m, 0] for negative m.
func TestModMatchesBig(t *testing.T) {
	rng := newTestRand()
	for i := 0; i < TEST_PROPERTY_ITERATIONS; i++ {
		a := randomInt(rng, true)
		m := randomNonZero(rng, true)
		actual, err := a.Mod(m)
		if err != nil {
			t.Fatalf("%s mod %s returned an error: %v", a, m, err)
		}
		// math/big Mod is Euclidean: always in [0, |m|).
		expected := new(big.Int).Mod(toBig(t, a), toBig(t, m))
		if m.Sign() < 0 && expected.Sign() != 0 {
			expected.Add(expected, toBig(t, m))
		}
		if toBig(t, actual).Cmp(expected) != 0 {
			t.Errorf("%s mod %s: expected %x got %s", a, m, expected, actual)
		}
		if m.Sign() > 0 && (actual.Sign() < 0 || actual.GreaterEq(m)) {
			t.Errorf("%s mod %s: %s is outside [0, m)", a, m, actual)
		}
		if m.Sign() < 0 && (actual.Sign() > 0 || actual.LessEq(m)) {
			t.Errorf("%s mod %s: %s is outside (m, 0]", a, m, actual)
		}
	}
}

func TestModConcrete(t *testing.T) {
	tests := []struct {
		a, m, expected int64
	}{
		{10, 3, 1},
		{-10, 3, 2},
		{10, -3, -2},
		{-10, -3, -1},
		{0, 5, 0},
		{0, -5, 0},
		{10, -5, 0},
		{-10, 5, 0},
		{5, 5, 0},
		{-5, -5, 0},
		{4, 5, 4},
		{-4, -5, -4},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d_mod_%d", test.a, test.m), func(t *testing.T) {
			actual, err := prime.NewInt(test.a).Mod(prime.NewInt(test.m))
			if err != nil {
				t.Errorf("Mod returned an error: %v", err)
			}
			testIntEqual(t, prime.NewInt(test.expected), actual)
		})
	}
}

// Repeated subtraction of the largest fitting shift of m reproduces Mod.
func TestModByRepeatedSubtraction(t *testing.T) {
	rng := newTestRand()
	for i := 0; i < TEST_PROPERTY_ITERATIONS/4; i++ {
		n := randomNonZero(rng, false)
		m := randomNonZero(rng, false).Rsh(rng.UintN(200))
		if !m.Bool() || !m.IsOdd() {
			continue
		}
		r := n
		for r.GreaterEq(m) {
			shift := uint(0)
			for m.Lsh(shift + 1).LessEq(r) {
				shift++
			}
			r = r.Sub(m.Lsh(shift))
		}
		actual, err := n.Mod(m)
		if err != nil {
			t.Fatalf("Mod returned an error: %v", err)
		}
		testIntEqual(t, r, actual)
	}
}

func TestModByZero(t *testing.T) {
	if _, err := prime.NewInt(10).Mod(prime.NewInt(0)); !errors.Is(err, prime.ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero got %v", err)
	}
	var zero prime.Int
	if _, err := prime.NewInt(10).Mod(zero); !errors.Is(err, prime.ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero got %v", err)
	}
}

func BenchmarkMul(b *testing.B) {
	rng := newTestRand()
	for _, bits := range []uint{256, 512, 1024, 2048} {
		x := randomNonZero(rng, false).Lsh(bits).Rsh(uint(TEST_MAX_WORDS * 64))
		y := randomNonZero(rng, false).Lsh(bits).Rsh(uint(TEST_MAX_WORDS * 64))
		b.Run(fmt.Sprintf("bits=%d", bits), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = x.Mul(y)
			}
		})
	}
}

func BenchmarkMod(b *testing.B) {
	rng := newTestRand()
	for _, bits := range []uint{256, 512, 1024} {
		m := prime.NewInt(1).Lsh(bits - 1).Or(randomNonZero(rng, false))
		x := m.Mul(m).Add(randomNonZero(rng, false))
		b.Run(fmt.Sprintf("bits=%d", bits), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _ = x.Mod(m)
			}
		})
	}
}
