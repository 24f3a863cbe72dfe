package ccid

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// TRANSCEIVER LOGIC:
// One command is in flight at a time. Each command takes the next value of an
// 8-bit sequence counter, which the reader echoes in its DataBlock. Reception
// has two layers:
//
// 1. Immediate receive:
//    Read one bulk-in transfer, validate the header (length, type, sequence)
//    and keep reading until the declared payload length has been collected.
//
// 2. Wait for completion:
//    Repeat the immediate receive while the reader answers with a time
//    extension request, then require a successful status.
//
// PowerOn adds a wall-clock retry loop on top of (2). Transmit does not: a
// retried XfrBlock could execute a card command twice.

// Endpoint is a bulk endpoint of the reader's CCID interface.
type Endpoint interface {
	MaxPacketSize() int
}

// Connection abstracts an open USB device connection.
type Connection interface {
	// BulkTransfer performs one blocking bulk transfer on ep. For IN endpoints
	// buf is filled with received data, for OUT endpoints buf is sent.
	// It returns the number of bytes transferred.
	BulkTransfer(ep Endpoint, buf []byte, timeout time.Duration) (int, error)
}

// DefaultMaxDataLength bounds the payload size accepted from a reader.
const DefaultMaxDataLength = 1 << 20

// Transceiver exchanges CCID messages with a single-slot reader.
// It is not safe for concurrent use.
type Transceiver struct {
	conn    Connection
	bulkIn  Endpoint
	bulkOut Endpoint

	seq  byte
	slot byte

	transferTimeout time.Duration
	powerOnTimeout  time.Duration
	retryDelay      time.Duration
	maxDataLength   uint32

	logger zerolog.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// Option configures a Transceiver.
type Option func(*Transceiver)

// WithLogger sets the logger used for frame-level tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transceiver) {
		t.logger = logger.With().Str("component", "ccid").Logger()
	}
}

// WithTransferTimeout sets the timeout of every bulk transfer.
func WithTransferTimeout(d time.Duration) Option {
	return func(t *Transceiver) { t.transferTimeout = d }
}

// WithPowerOnTimeout sets the wall-clock budget of PowerOn.
func WithPowerOnTimeout(d time.Duration) Option {
	return func(t *Transceiver) { t.powerOnTimeout = d }
}

// WithRetryDelay sets the pause between PowerOn receive attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(t *Transceiver) { t.retryDelay = d }
}

// WithSlot sets the slot number placed in command headers.
func WithSlot(slot byte) Option {
	return func(t *Transceiver) { t.slot = slot }
}

// WithMaxDataLength bounds the payload length accepted in a DataBlock header.
func WithMaxDataLength(n uint32) Option {
	return func(t *Transceiver) { t.maxDataLength = n }
}

// NewTransceiver creates a Transceiver over an already opened connection.
// The connection and endpoints stay owned by the caller.
func NewTransceiver(conn Connection, bulkIn, bulkOut Endpoint, opts ...Option) *Transceiver {
	t := &Transceiver{
		conn:            conn,
		bulkIn:          bulkIn,
		bulkOut:         bulkOut,
		slot:            DefaultSlot,
		transferTimeout: DefaultTransferTimeout,
		powerOnTimeout:  DefaultPowerOnTimeout,
		retryDelay:      DefaultRetryDelay,
		maxDataLength:   DefaultMaxDataLength,
		logger:          zerolog.Nop(),
		now:             time.Now,
		sleep:           time.Sleep,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Sequence returns the sequence number the next command will use.
func (t *Transceiver) Sequence() byte {
	return t.seq
}

// PowerOn powers up the card in the slot (CCID 6.1.1 PC_to_RDR_IccPowerOn).
// The returned block carries the card's ATR.
func (t *Transceiver) PowerOn() (DataBlock, error) {
	seq := t.nextSequence()
	if err := t.sendRaw(EncodePowerOn(t.slot, seq)); err != nil {
		return DataBlock{}, err
	}

	start := t.now()
	var lastErr error
	for {
		block, err := t.receiveDataBlock(seq)
		if err == nil {
			return block, nil
		}
		if errors.Is(err, ErrInvalidHeaderType) {
			return DataBlock{}, err
		}
		lastErr = err

		t.logger.Warn().Err(err).Uint8("seq", seq).Msg("error waiting for device power on")
		if t.now().Sub(start) > t.powerOnTimeout {
			break
		}
		t.sleep(t.retryDelay)
	}

	return DataBlock{}, transportErr("power on", fmt.Errorf("%w (last error: %v)", ErrPowerOnTimeout, lastErr))
}

// Transmit sends payload in a PC_to_RDR_XfrBlock (CCID 6.1.4) and returns the
// reader's reply. Failures are never retried.
func (t *Transceiver) Transmit(payload []byte) (DataBlock, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return DataBlock{}, transportErr("transmit", fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload)))
	}

	seq := t.nextSequence()
	if err := t.sendRaw(EncodeXfrBlock(t.slot, seq, payload)); err != nil {
		return DataBlock{}, err
	}
	return t.receiveDataBlock(seq)
}

func (t *Transceiver) nextSequence() byte {
	seq := t.seq
	t.seq++
	return seq
}

// receiveDataBlock waits until the reader stops requesting time extensions
// and checks the definitive status.
func (t *Transceiver) receiveDataBlock(seq byte) (DataBlock, error) {
	var block DataBlock
	var err error
	for {
		block, err = t.receiveDataBlockImmediate(seq)
		if err != nil {
			return DataBlock{}, err
		}
		if !block.IsTimeExtensionRequest() {
			break
		}
		t.logger.Debug().Uint8("seq", seq).Uint8("bwi", block.Error).Msg("time extension requested")
	}

	if !block.IsSuccess() {
		return DataBlock{}, transportErr("receive", &StatusError{Block: block})
	}
	return block, nil
}

// receiveDataBlockImmediate reads one DataBlock and its complete payload.
func (t *Transceiver) receiveDataBlockImmediate(seq byte) (DataBlock, error) {
	size, err := packetSize(t.bulkIn)
	if err != nil {
		return DataBlock{}, transportErr("receive", err)
	}
	buf := make([]byte, max(size, HeaderLength))

	n, err := t.conn.BulkTransfer(t.bulkIn, buf, t.transferTimeout)
	if err != nil {
		return DataBlock{}, transportErr("receive", fmt.Errorf("%w: %w", ErrShortHeader, err))
	}
	if n < HeaderLength {
		return DataBlock{}, transportErr("receive", fmt.Errorf("%w: got %d bytes", ErrShortHeader, n))
	}
	if MessageType(buf[0]) != MessageDataBlock {
		return DataBlock{}, transportErr("receive", fmt.Errorf("%w 0x%02X", ErrBadMessageType, buf[0]))
	}

	header, err := ParseHeader(buf[:n])
	if err != nil {
		return DataBlock{}, err
	}

	if header.Seq != seq {
		return DataBlock{}, transportErr("receive", fmt.Errorf("%w: expected %d, got %s", ErrSequenceMismatch, seq, header))
	}
	if header.DataLength > t.maxDataLength {
		return DataBlock{}, transportErr("receive", fmt.Errorf("%w: %d > %d", ErrDataTooLong, header.DataLength, t.maxDataLength))
	}

	data := make([]byte, header.DataLength)
	buffered := copy(data, buf[HeaderLength:n])

	for buffered < len(data) {
		n, err = t.conn.BulkTransfer(t.bulkIn, buf, t.transferTimeout)
		if err != nil {
			return DataBlock{}, transportErr("receive", fmt.Errorf("%w: %w, header: %s", ErrReassembly, err, header))
		}
		if n == 0 {
			return DataBlock{}, transportErr("receive", fmt.Errorf("%w: empty transfer at %d/%d, header: %s",
				ErrReassembly, buffered, len(data), header))
		}
		buffered += copy(data[buffered:], buf[:n])
	}

	t.logger.Debug().
		Uint8("seq", header.Seq).
		Uint8("status", header.Status).
		Uint32("len", header.DataLength).
		Msg("data block received")

	return header.WithData(data), nil
}

// sendRaw writes frame in chunks of at most the bulk-out max packet size.
// A failure leaves the frame partially sent.
func (t *Transceiver) sendRaw(frame []byte) error {
	size, err := packetSize(t.bulkOut)
	if err != nil {
		return transportErr("send", err)
	}

	for sent := 0; sent < len(frame); {
		chunk := min(size, len(frame)-sent)

		n, err := t.conn.BulkTransfer(t.bulkOut, frame[sent:sent+chunk], t.transferTimeout)
		if err != nil {
			return transportErr("send", fmt.Errorf("failed to transmit data: %w", err))
		}
		if n != chunk {
			return transportErr("send", fmt.Errorf("%w (%d/%d)", ErrShortWrite, n, chunk))
		}
		sent += chunk
	}

	t.logger.Debug().
		Stringer("type", MessageType(frame[0])).
		Uint8("seq", frame[6]).
		Int("len", len(frame)-HeaderLength).
		Msg("command sent")
	return nil
}

func packetSize(ep Endpoint) (int, error) {
	size := ep.MaxPacketSize()
	if size <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPacketSize, size)
	}
	return size, nil
}
