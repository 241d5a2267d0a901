package prime

import (
	cryptorand "crypto/rand"
	"math/rand/v2"
)

// WordSource produces uniformly random 32-bit words. Implementations are not
// required to be safe for concurrent use; each search worker owns its own.
// A *rand.Rand from math/rand/v2 satisfies this interface.
type WordSource interface {
	Uint32() uint32
}

// SourceFactory returns a new, independent WordSource each time it is called.
type SourceFactory func() WordSource

// Returns a new ChaCha8 backed WordSource seeded from crypto/rand.
func NewWordSource() WordSource {
	var seed [32]byte
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = cryptorand.Read(seed[:])
	return rand.New(rand.NewChaCha8(seed))
}
