package prime_test

import (
	"math/big"
	"math/rand/v2"
	"testing"

	"github.com/memes/prime"
)

const (
	// Number of randomly generated operand sets used by property tests.
	TEST_PROPERTY_ITERATIONS = 200
	// Largest operand, in 64-bit words, used by property tests.
	TEST_MAX_WORDS = 6
)

// Returns a math/big copy of x for use as a test oracle.
func toBig(t *testing.T, x prime.Int) *big.Int {
	t.Helper()
	b, ok := new(big.Int).SetString(x.Text(), 16)
	if !ok {
		t.Fatalf("math/big failed to parse %q", x.Text())
	}
	return b
}

// Returns a prime.Int copy of b.
func fromBig(t *testing.T, b *big.Int) prime.Int {
	t.Helper()
	x, err := prime.ParseHex(b.Text(16))
	if err != nil {
		t.Fatalf("ParseHex(%q) returned an error: %v", b.Text(16), err)
	}
	return x
}

// Returns a random Int of up to TEST_MAX_WORDS words with a random sign. The
// top word is sometimes small so that operands of uneven length are common.
func randomInt(rng *rand.Rand, signed bool) prime.Int {
	words := 1 + rng.IntN(TEST_MAX_WORDS)
	x := prime.NewInt(0)
	for i := 0; i < words; i++ {
		w := rng.Uint64()
		if i == words-1 && rng.IntN(3) == 0 {
			w >>= rng.UintN(64)
		}
		x = x.Lsh(64).Add(prime.NewUint64(w))
	}
	if signed && rng.IntN(2) == 0 {
		x = x.Neg()
	}
	return x
}

// Returns a random non-zero Int.
func randomNonZero(rng *rand.Rand, signed bool) prime.Int {
	for {
		if x := randomInt(rng, signed); x.Bool() {
			return x
		}
	}
}

func newTestRand() *rand.Rand {
	return rand.New(rand.NewPCG(0x5eed, 0xb16b00b5))
}

// A WordSource that replays a fixed sequence of words forever.
type fixedSource struct {
	words []uint32
	next  int
}

func (f *fixedSource) Uint32() uint32 {
	w := f.words[f.next%len(f.words)]
	f.next++
	return w
}

func testIntEqual(t *testing.T, expected, actual prime.Int) {
	t.Helper()
	if !expected.Equal(actual) {
		t.Errorf("expected %s got %s", expected, actual)
	}
}
