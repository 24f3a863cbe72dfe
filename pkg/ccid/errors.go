package ccid

import (
	"errors"
	"fmt"
)

// Transport failures. They always reach the caller wrapped in a *TransportError.
var (
	// ErrShortWrite indicates a bulk-out write transferred fewer bytes than requested.
	ErrShortWrite = errors.New("short write")

	// ErrShortHeader indicates a bulk-in read returned less than a full header.
	ErrShortHeader = errors.New("failed to receive CCID header")

	// ErrBadMessageType indicates a response that is not a DataBlock.
	ErrBadMessageType = errors.New("bad CCID header type")

	// ErrSequenceMismatch indicates a response correlated to another command.
	ErrSequenceMismatch = errors.New("sequence number mismatch")

	// ErrReassembly indicates a follow-up read failed while collecting payload.
	ErrReassembly = errors.New("failed reading response data")

	// ErrDataTooLong indicates a response declaring more payload than accepted.
	ErrDataTooLong = errors.New("declared data length too long")

	// ErrPayloadTooLarge indicates a payload that does not fit the 32-bit length field.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrInvalidPacketSize indicates an endpoint reporting a non-positive max packet size.
	ErrInvalidPacketSize = errors.New("invalid endpoint max packet size")

	// ErrPowerOnTimeout indicates no valid power-on response arrived in time.
	ErrPowerOnTimeout = errors.New("could not power up security token")
)

// ErrInvalidHeaderType is returned by ParseHeader for bytes that do not start
// with a DataBlock message type. Receivers filter on the type before parsing,
// so seeing it from a Transceiver points at a bug rather than at the reader.
var ErrInvalidHeaderType = errors.New("ccid: header has incorrect type value")

// TransportError is the single error category surfaced by Transceiver operations.
type TransportError struct {
	Op  string // "power on", "transmit", "send" or "receive"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("usb-ccid %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err carries a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StatusError is raised when the reader reports a definitive failure.
type StatusError struct {
	Block DataBlock
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reader reported failure (status 0x%02X, error 0x%02X): %s",
		e.Block.Status, e.Block.Error, e.Block)
}

func transportErr(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}
