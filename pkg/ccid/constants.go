package ccid

import "time"

// HeaderLength is the size of every CCID bulk message header.
const HeaderLength = 10

// MessageType identifies a CCID bulk message.
type MessageType byte

// Message types used by the transceiver.
const (
	MessageIccPowerOn MessageType = 0x62 // PC_to_RDR_IccPowerOn
	MessageXfrBlock   MessageType = 0x6F // PC_to_RDR_XfrBlock
	MessageDataBlock  MessageType = 0x80 // RDR_to_PC_DataBlock
)

// String returns the CCID name of the message type.
func (m MessageType) String() string {
	switch m {
	case MessageIccPowerOn:
		return "PC_to_RDR_IccPowerOn"
	case MessageXfrBlock:
		return "PC_to_RDR_XfrBlock"
	case MessageDataBlock:
		return "RDR_to_PC_DataBlock"
	default:
		return "Unknown"
	}
}

// Command status values (status byte bits 6-7).
const (
	CommandStatusSuccess       byte = 0
	CommandStatusFailed        byte = 1
	CommandStatusTimeExtension byte = 2
)

// ICC status values (status byte bits 0-1).
const (
	ICCStatusActive   byte = 0
	ICCStatusInactive byte = 1
	ICCStatusNoCard   byte = 2
)

// DefaultSlot is the only slot addressed by the transceiver.
const DefaultSlot byte = 0x00

// VoltageAutomatic lets the reader pick the card supply voltage.
const VoltageAutomatic byte = 0x00

// Default timing.
const (
	DefaultTransferTimeout = 20 * time.Second
	DefaultPowerOnTimeout  = 20 * time.Second
	DefaultRetryDelay      = 100 * time.Millisecond
)
