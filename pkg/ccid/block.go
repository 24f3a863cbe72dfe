package ccid

import (
	"encoding/binary"
	"fmt"

	"github.com/gregLibert/ccid-transceiver/pkg/bits"
)

// DataBlock corresponds to RDR_to_PC_DataBlock (CCID 6.2.1).
//
// A block starts life as a parsed header only. Once the declared payload has
// been collected, WithData produces a second value carrying it; the header-only
// value is never updated in place.
type DataBlock struct {
	DataLength     uint32
	Slot           byte
	Seq            byte
	Status         byte
	Error          byte
	ChainParameter byte

	data    []byte
	hasData bool
}

// ParseHeader decodes the 10-byte DataBlock header at the start of raw.
func ParseHeader(raw []byte) (DataBlock, error) {
	if len(raw) < HeaderLength {
		return DataBlock{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(raw))
	}
	if MessageType(raw[0]) != MessageDataBlock {
		return DataBlock{}, fmt.Errorf("%w: 0x%02X", ErrInvalidHeaderType, raw[0])
	}

	return DataBlock{
		DataLength:     binary.LittleEndian.Uint32(raw[1:5]),
		Slot:           raw[5],
		Seq:            raw[6],
		Status:         raw[7],
		Error:          raw[8],
		ChainParameter: raw[9],
	}, nil
}

// WithData returns a copy of the block carrying data as its payload.
// Attaching a payload twice is a programming error and panics.
func (b DataBlock) WithData(data []byte) DataBlock {
	if b.hasData {
		panic("ccid: cannot add data to a DataBlock twice")
	}
	b.data = data
	b.hasData = true
	return b
}

// HasData reports whether the payload has been attached.
func (b DataBlock) HasData() bool {
	return b.hasData
}

// Data returns the reassembled payload, or nil for a header-only block.
// The returned slice is shared with the block; do not modify.
func (b DataBlock) Data() []byte {
	return b.data
}

// ICCStatus returns the card presence/activation status (bits 0-1).
func (b DataBlock) ICCStatus() byte {
	return bits.Range(b.Status, 1, 0)
}

// CommandStatus returns the command processing status (bits 6-7).
func (b DataBlock) CommandStatus() byte {
	return bits.Range(b.Status, 7, 6)
}

// IsTimeExtensionRequest reports whether the reader asks for more time.
func (b DataBlock) IsTimeExtensionRequest() bool {
	return b.CommandStatus() == CommandStatusTimeExtension
}

// IsSuccess reports whether both the card and the command status are OK.
func (b DataBlock) IsSuccess() bool {
	return b.ICCStatus() == ICCStatusActive && b.CommandStatus() == CommandStatusSuccess
}

// String returns a readable representation of the header fields.
func (b DataBlock) String() string {
	s := fmt.Sprintf("DataBlock{len=%d, slot=%d, seq=%d, status=0x%02X (icc=%d, cmd=%d), error=0x%02X, chain=0x%02X",
		b.DataLength, b.Slot, b.Seq, b.Status, b.ICCStatus(), b.CommandStatus(), b.Error, b.ChainParameter)
	if b.hasData {
		s += fmt.Sprintf(", data=%X", b.data)
	}
	return s + "}"
}
