package prime

import (
	"context"
)

const (
	// The number of random witnesses tried before a candidate is declared
	// probably prime; a composite survives with probability at most 4^-50.
	DefaultRounds = 50
	// Sampled 32-bit words are reduced by this value before use as a base.
	witnessModulus = 0xffffffff
)

// Odd primes used to discard candidates before running Miller-Rabin. Two is
// excluded because even candidates are rejected earlier.
var smallPrimes = []uint64{
	3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53,
}

// IsWitness reports whether a is evidence that the odd integer n > 2 is
// composite. n-1 is decomposed as 2^t * u with u odd; a^u mod n is squared t
// times, and a non-trivial square root of 1 found on the way, or a final value
// other than 1, proves n composite.
func IsWitness(a, n Int) bool {
	nMinusOne := n.Sub(one)
	t := nMinusOne.TrailingZeroBits()
	u := nMinusOne.Rsh(t)
	x, err := ModExp(a, u, n)
	if err != nil {
		// Only reachable for n == 0, which is not a prime.
		return true
	}
	for i := uint(0); i < t; i++ {
		last := x
		x = last.Mul(last).mod(n)
		if x.Equal(one) && !last.Equal(one) && !last.Equal(nMinusOne) {
			return true
		}
	}
	return !x.Equal(one)
}

// Tester runs the Miller-Rabin test with bases drawn from a WordSource. A
// Tester is not safe for concurrent use.
type Tester struct {
	source WordSource
	rounds int
}

// Returns a Tester that draws witnesses from source and tries rounds bases;
// a rounds value < 1 selects DefaultRounds.
func NewTester(source WordSource, rounds int) *Tester {
	if rounds < 1 {
		rounds = DefaultRounds
	}
	return &Tester{
		source: source,
		rounds: rounds,
	}
}

// Returns the number of witnesses tried per candidate.
func (t *Tester) Rounds() int {
	return t.rounds
}

// Samples a witness base for n: a 32-bit word reduced by witnessModulus and
// then by n, with zero remapped to two.
func (t *Tester) witness(n Int) Int {
	a := NewUint64(uint64(t.source.Uint32() % witnessModulus)).mod(n)
	if a.IsZero() {
		return two
	}
	return a
}

// ProbablyPrime reports whether n is probably prime. Values below two and
// even values other than two are never prime; multiples of a small prime are
// rejected without Miller-Rabin. The context is checked between rounds and
// its error is returned if it is done before a verdict is reached.
func (t *Tester) ProbablyPrime(ctx context.Context, n Int) (bool, error) {
	l := logger.V(3).WithValues("bits", n.BitLen())
	switch {
	case n.Less(two):
		return false, nil
	case n.Equal(two):
		return true, nil
	case !n.IsOdd():
		return false, nil
	}
	for _, p := range smallPrimes {
		divisor := NewUint64(p)
		if n.Equal(divisor) {
			return true, nil
		}
		if n.mod(divisor).IsZero() {
			l.Info("ProbablyPrime: small prime divisor", "divisor", p)
			return false, nil
		}
	}
	for round := 0; round < t.rounds; round++ {
		if err := ctx.Err(); err != nil {
			return false, err //nolint:wrapcheck // Context errors are returned as-is
		}
		if a := t.witness(n); IsWitness(a, n) {
			l.Info("ProbablyPrime: witness found", "round", round, "witness", a)
			return false, nil
		}
	}
	l.Info("ProbablyPrime: exit", "result", true)
	return true, nil
}
