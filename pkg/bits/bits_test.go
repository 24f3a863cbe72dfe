package bits

import "testing"

func TestBit(t *testing.T) {
	tests := []struct {
		n        uint
		expected byte
	}{
		{0, 0x01}, {4, 0x10}, {7, 0x80},
		{8, 0x00}, // out of range
	}

	for _, tt := range tests {
		if res := Bit(tt.n); res != tt.expected {
			t.Errorf("Bit(%d) = 0x%02X; want 0x%02X", tt.n, res, tt.expected)
		}
	}
}

func TestIsSet(t *testing.T) {
	val := byte(0b10100101)
	if !IsSet(val, 7) {
		t.Error("Bit 7 should be set")
	}
	if IsSet(val, 6) {
		t.Error("Bit 6 should NOT be set")
	}
	if !IsSet(val, 0) {
		t.Error("Bit 0 should be set")
	}
}

func TestRange(t *testing.T) {
	tests := []struct {
		name     string
		input    byte
		high     uint
		low      uint
		expected byte
	}{
		{"ICC status of 0x02", 0b0000_0010, 1, 0, 2},
		{"Command status of 0x80", 0b1000_0000, 7, 6, 2},
		{"Command status of 0x40", 0b0100_0000, 7, 6, 1},
		{"Command status ignores ICC bits", 0b0000_0011, 7, 6, 0},
		{"Full Byte", 0xAA, 7, 0, 0xAA},
		{"Inverted range", 0xFF, 0, 1, 0},
		{"High out of range", 0xFF, 8, 6, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := Range(tt.input, tt.high, tt.low); res != tt.expected {
				t.Errorf("Range(0x%02X, %d, %d) = %d; want %d", tt.input, tt.high, tt.low, res, tt.expected)
			}
		})
	}
}

func TestSetClear(t *testing.T) {
	var b byte
	b = Set(b, 6)
	if b != 0x40 {
		t.Errorf("Set(6) = 0b%08b; want 0b%08b", b, 0x40)
	}
	b = Clear(b, 6)
	if b != 0 {
		t.Errorf("Clear(6) = 0b%08b; want 0", b)
	}
}
