// Package tlv renders BER-TLV (Basic Encoding Rules - Tag-Length-Value) data
// returned by smart cards, such as the OpenPGP application related data, in a
// human-readable tree.
package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// Hex constructs a byte slice from a series of hex strings.
// Spaces are ignored to allow formats like "00 A4 04 00". It panics on
// invalid input and is meant for fixtures and literals.
func Hex(parts ...string) []byte {
	clean := strings.ReplaceAll(strings.Join(parts, ""), " ", "")

	data, err := hex.DecodeString(clean)
	if err != nil {
		panic(fmt.Sprintf("invalid input '%s': %v", clean, err))
	}
	return data
}

// Describe decodes data as BER-TLV and returns one line per tag, indenting
// the children of constructed tags. It does not add a trailing newline.
func Describe(data []byte) (string, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return "", fmt.Errorf("bertlv decode failed: %w", err)
	}

	var lines []string
	describePackets(&lines, packets, 0)
	return strings.Join(lines, "\n"), nil
}

func describePackets(lines *[]string, packets []bertlv.TLV, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, p := range packets {
		if len(p.TLVs) > 0 {
			*lines = append(*lines, fmt.Sprintf("%s%s:", indent, strings.ToUpper(p.Tag)))
			describePackets(lines, p.TLVs, depth+1)
			continue
		}
		*lines = append(*lines, fmt.Sprintf("%s%s (%d): %s", indent, strings.ToUpper(p.Tag), len(p.Value), formatValue(p.Value)))
	}
}

func formatValue(data []byte) string {
	if isPrintable(data) {
		return fmt.Sprintf("%X (%q)", data, string(data))
	}
	return strings.ToUpper(hex.EncodeToString(data))
}

func isPrintable(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, b := range data {
		if b < 32 || b > 126 {
			return false
		}
	}
	return true
}
