// Package prime implements a sign-magnitude arbitrary-precision integer, the
// number theory needed by a Miller-Rabin primality test, and a concurrent
// search for random large probable primes.
package prime

import (
	"errors"

	"github.com/go-logr/logr"
)

const (
	// The name used for OpenTelemetry tracers, meters and attribute keys.
	OpenTelemetryPackageIdentifier = "prime"
)

var (
	// Logger to use in this package; default is a no-op logger.
	logger = logr.Discard()

	// Returned when a modulus or modular exponentiation is given a zero
	// divisor.
	ErrDivisionByZero = errors.New("division by zero")
	// Returned when modular exponentiation is given a negative exponent.
	ErrNegativeExponent = errors.New("negative exponent")
	// Returned when a candidate or search is requested with fewer than two bits.
	ErrBitLengthTooSmall = errors.New("bit length must be at least 2")
	// Returned when a string cannot be parsed as a hexadecimal integer.
	ErrInvalidHex = errors.New("invalid hexadecimal integer")
)

// Change the logger instance used by this package.
func SetLogger(l logr.Logger) {
	logger = l
}
