package tlv

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHex(t *testing.T) {
	tests := []struct {
		name      string
		inputs    []string
		want      []byte
		wantPanic bool
	}{
		{
			name:   "Simple Join",
			inputs: []string{"80", "02000000"},
			want:   []byte{0x80, 0x02, 0x00, 0x00, 0x00},
		},
		{
			name:   "With Spaces",
			inputs: []string{"62 00", " 00 00 "},
			want:   []byte{0x62, 0x00, 0x00, 0x00},
		},
		{
			name:   "Mixed Case",
			inputs: []string{"6f", "FE"},
			want:   []byte{0x6F, 0xFE},
		},
		{
			name:      "Invalid Hex",
			inputs:    []string{"ZZ"},
			wantPanic: true,
		},
		{
			name:      "Odd Length",
			inputs:    []string{"123"},
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if (r != nil) != tt.wantPanic {
					t.Errorf("Hex() panic = %v, wantPanic %v", r, tt.wantPanic)
				}
			}()

			got := Hex(tt.inputs...)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Hex() = %X, want %X", got, tt.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	raw := Hex(
		"6E 0A",
		"4F 02 D276", // AID fragment
		"73 04 C1 02 0102",
		"5F50 03 616263", // URL "abc"
	)

	got, err := Describe(raw)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}

	want := []string{
		"6E:",
		"  4F (2): D276",
		"  73:",
		"    C1 (2): 0102",
		`5F50 (3): 616263 ("abc")`,
	}
	if diff := cmp.Diff(want, strings.Split(got, "\n")); diff != "" {
		t.Errorf("Mismatch (-want +got):\n%s", diff)
	}
}

func TestDescribe_Invalid(t *testing.T) {
	if _, err := Describe(Hex("6E 05 01")); err == nil {
		t.Error("Expected error for truncated TLV, got nil")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		input []byte
		want  string
	}{
		{[]byte("OK"), `4F4B ("OK")`},
		{[]byte{0x90, 0x00}, "9000"},
		{[]byte{0x41, 0x00}, "4100"},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := formatValue(tt.input); got != tt.want {
			t.Errorf("formatValue(%X) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
