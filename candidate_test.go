package prime_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/memes/prime"
)

func TestGenerateCandidate(t *testing.T) {
	source := prime.NewWordSource()
	for bits := 2; bits <= 130; bits++ {
		t.Run(fmt.Sprintf("bits=%d", bits), func(t *testing.T) {
			for i := 0; i < 10; i++ {
				candidate, err := prime.GenerateCandidate(source, bits)
				if err != nil {
					t.Fatalf("GenerateCandidate returned an error: %v", err)
				}
				if actual := candidate.BitLen(); actual != bits {
					t.Errorf("expected %d bits got %d for %s", bits, actual, candidate)
				}
				if !candidate.IsOdd() || candidate.Sign() <= 0 {
					t.Errorf("expected a positive odd candidate got %s", candidate)
				}
			}
		})
	}
}

func TestGenerateCandidateFixedSource(t *testing.T) {
	tests := []struct {
		name     string
		words    []uint32
		bits     int
		expected prime.Int
	}{
		{"zeros-2", []uint32{0}, 2, prime.NewInt(3)},
		{"zeros-8", []uint32{0}, 8, prime.NewInt(0x81)},
		{"ones-8", []uint32{0xffffffff}, 8, prime.NewInt(0xff)},
		{"even-8", []uint32{0x1234}, 8, prime.NewInt(0xb3)},
		{"chunks-40", []uint32{0x89abcdef, 0x01234567}, 40, prime.NewInt(0xe789abcdef)},
		{"even-chunks-64", []uint32{0x00000010, 0x00000000}, 64, prime.NewInt(1).Lsh(63).Add(prime.NewInt(0xf))},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			actual, err := prime.GenerateCandidate(&fixedSource{words: test.words}, test.bits)
			if err != nil {
				t.Fatalf("GenerateCandidate returned an error: %v", err)
			}
			testIntEqual(t, test.expected, actual)
		})
	}
}

func TestGenerateCandidateTooSmall(t *testing.T) {
	for _, bits := range []int{-1, 0, 1} {
		if _, err := prime.GenerateCandidate(prime.NewWordSource(), bits); !errors.Is(err, prime.ErrBitLengthTooSmall) {
			t.Errorf("bits=%d: expected ErrBitLengthTooSmall got %v", bits, err)
		}
	}
}
