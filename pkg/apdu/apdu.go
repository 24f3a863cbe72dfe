// Package apdu exchanges ISO/IEC 7816-4 APDUs with a card over any
// Transmitter: a CCID transceiver talking to the reader directly, or a PC/SC
// card handle.
//
// Commands are opaque byte strings here. Only the response trailer (SW1 SW2)
// is interpreted, to follow the transport-level continuations of T=0 cards:
//
//   - "61 XX": XX more bytes are available, fetched with GET RESPONSE.
//   - "6C XX": wrong Le, the command is re-sent with Le = XX.
package apdu

import (
	"fmt"
)

// StatusWord is the two-byte trailer (SW1-SW2) of a response APDU.
type StatusWord uint16

// Status words handled by the client.
const (
	SWNoError StatusWord = 0x9000
)

// NewStatusWord creates a StatusWord from two separate bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the high byte.
func (sw StatusWord) SW1() byte {
	return byte(sw >> 8)
}

// SW2 returns the low byte.
func (sw StatusWord) SW2() byte {
	return byte(sw)
}

// IsSuccess returns true for 9000 and for 61XX (data still available).
func (sw StatusWord) IsSuccess() bool {
	return sw == SWNoError || sw.SW1() == 0x61
}

func (sw StatusWord) String() string {
	switch sw.SW1() {
	case 0x61:
		return fmt.Sprintf("%04X (%d bytes available)", uint16(sw), sw.SW2())
	case 0x6C:
		return fmt.Sprintf("%04X (wrong length, correct Le is %d)", uint16(sw), sw.SW2())
	}
	if sw == SWNoError {
		return "9000 (OK)"
	}
	return fmt.Sprintf("%04X", uint16(sw))
}

// Response is a response APDU (R-APDU).
type Response struct {
	Data   []byte
	Status StatusWord
}

// ParseResponse splits raw bytes received from the card into data and trailer.
func ParseResponse(raw []byte) (*Response, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	i := len(raw) - 2
	return &Response{
		Data:   raw[:i],
		Status: NewStatusWord(raw[i], raw[i+1]),
	}, nil
}

func (r *Response) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status)
}
