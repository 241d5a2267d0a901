package prime

import (
	"fmt"
	"strconv"
	"strings"
)

// Hex digits in a full magnitude word.
const wordHexDigits = wordBits / 4

// Text returns the hexadecimal form of x: the most-significant word unpadded,
// every following word zero-padded to 16 digits, with a leading '-' if x is
// negative.
func (x Int) Text() string {
	mag := x.abs()
	var sb strings.Builder
	sb.Grow(len(mag)*wordHexDigits + 1)
	if x.neg {
		sb.WriteByte('-')
	}
	top := len(mag) - 1
	sb.WriteString(strconv.FormatUint(mag[top], 16))
	for i := top - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "%016x", mag[i])
	}
	return sb.String()
}

func (x Int) String() string {
	return x.Text()
}

// ParseHex parses a hexadecimal integer with an optional sign and an optional
// 0x prefix.
func ParseHex(s string) (Int, error) {
	digits := s
	neg := false
	switch {
	case strings.HasPrefix(digits, "-"):
		neg = true
		digits = digits[1:]
	case strings.HasPrefix(digits, "+"):
		digits = digits[1:]
	}
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits = digits[2:]
	}
	if digits == "" {
		return Int{}, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	mag := make(nat, 0, (len(digits)+wordHexDigits-1)/wordHexDigits)
	for end := len(digits); end > 0; end -= wordHexDigits {
		start := end - wordHexDigits
		if start < 0 {
			start = 0
		}
		w, err := strconv.ParseUint(digits[start:end], 16, wordBits)
		if err != nil {
			return Int{}, fmt.Errorf("%w: %q", ErrInvalidHex, s)
		}
		mag = append(mag, w)
	}
	return makeInt(mag.norm(), neg), nil
}

// MarshalText implements encoding.TextMarshaler using the hexadecimal form.
func (x Int) MarshalText() ([]byte, error) {
	return []byte(x.Text()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler; see ParseHex.
func (x *Int) UnmarshalText(text []byte) error {
	v, err := ParseHex(string(text))
	if err != nil {
		return err
	}
	*x = v
	return nil
}
