package prime

// Returns (base ^ exponent) mod modulus using square-and-multiply, scanning
// the exponent from its most-significant bit down. The result follows the
// sign convention of Int.Mod.
func ModExp(base, exponent, modulus Int) (Int, error) {
	if modulus.IsZero() {
		return Int{}, ErrDivisionByZero
	}
	if exponent.Sign() < 0 {
		return Int{}, ErrNegativeExponent
	}
	result := one.mod(modulus)
	for i := exponent.BitLen() - 1; i >= 0; i-- {
		result = result.Mul(result).mod(modulus)
		if exponent.Bit(uint(i)) == 1 {
			result = result.Mul(base).mod(modulus)
		}
	}
	return result, nil
}

// Returns the greatest common divisor of a and b using Euclid's algorithm with
// Int.Mod as the reduction step. GCD(a, 0) is a.
func GCD(a, b Int) Int {
	for b.Bool() {
		a, b = b, a.mod(b)
	}
	return a
}
