// Package bits provides helpers for the packed bit fields found in CCID
// message headers. Bits are numbered from 0 (least significant) to 7, the
// way the USB CCID class specification labels them.
package bits

// Bit returns a byte with only bit n set (0 to 7).
func Bit(n uint) byte {
	if n > 7 {
		return 0
	}
	return 1 << n
}

// IsSet checks if bit n is set (0 to 7).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// Range extracts the value held in bits high..low inclusive.
// Example: Range(0b1000_0000, 7, 6) returns 2 (0b10).
func Range(b byte, high, low uint) byte {
	if high < low || high > 7 {
		return 0
	}

	width := high - low + 1
	mask := byte((1 << width) - 1)

	return (b >> low) & mask
}

// Set returns b with bit n set.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// Clear returns b with bit n cleared.
func Clear(b byte, n uint) byte {
	return b &^ Bit(n)
}
