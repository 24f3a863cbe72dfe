package apdu

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// maxExchanges bounds the continuations followed for one logical command.
const maxExchanges = 64

// ErrTooManyExchanges is returned when a card keeps answering 61XX or 6CXX.
var ErrTooManyExchanges = errors.New("too many continuation exchanges")

// Transmitter abstracts the physical card connection.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Exchange is one command sent and the response it produced.
type Exchange struct {
	Command  []byte
	Response *Response
}

// Trace is the sequence of exchanges performed for one logical command,
// including GET RESPONSE and Le corrections.
type Trace []Exchange

// Last returns the final exchange, or nil for an empty trace.
func (t Trace) Last() *Exchange {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// Status returns the final status word, or 0 for an empty trace.
func (t Trace) Status() StatusWord {
	last := t.Last()
	if last == nil || last.Response == nil {
		return 0
	}
	return last.Response.Status
}

// IsSuccess checks if the final exchange ended with 9000.
func (t Trace) IsSuccess() bool {
	return t.Status() == SWNoError
}

// Data concatenates the response data of every exchange in order.
func (t Trace) Data() []byte {
	var data []byte
	for _, ex := range t {
		if ex.Response != nil {
			data = append(data, ex.Response.Data...)
		}
	}
	return data
}

// Client sends commands and follows 61XX/6CXX continuations.
type Client struct {
	Card   Transmitter
	Logger zerolog.Logger
}

// NewClient creates a new Client instance.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card, Logger: zerolog.Nop()}
}

// Send transmits cmd and returns the trace of every exchange it took.
// On error the trace holds the exchanges completed so far.
func (c *Client) Send(cmd []byte) (Trace, error) {
	if len(cmd) < 4 {
		return nil, fmt.Errorf("command too short: length %d", len(cmd))
	}

	var trace Trace

	next := cmd
	for len(trace) < maxExchanges {
		rawResp, err := c.Card.Transmit(next)
		if err != nil {
			return trace, fmt.Errorf("transmission error: %w", err)
		}

		resp, err := ParseResponse(rawResp)
		if err != nil {
			return trace, err
		}
		trace = append(trace, Exchange{Command: next, Response: resp})

		c.Logger.Debug().Hex("command", next).Hex("data", resp.Data).Stringer("sw", resp.Status).Msg("apdu exchanged")

		switch resp.Status.SW1() {
		case 0x61:
			next = getResponse(cmd[0], resp.Status.SW2())
		case 0x6C:
			next = withLe(cmd, resp.Status.SW2())
		default:
			return trace, nil
		}
	}

	return trace, fmt.Errorf("%w: %d", ErrTooManyExchanges, len(trace))
}

// getResponse builds GET RESPONSE on the logical channel of cla, with command
// chaining cleared.
func getResponse(cla, le byte) []byte {
	return []byte{cla &^ 0x10, 0xC0, 0x00, 0x00, le}
}

// withLe returns a copy of a short command with its Le field set to le.
func withLe(cmd []byte, le byte) []byte {
	out := append([]byte(nil), cmd...)

	switch {
	case len(cmd) == 4: // case 1
		return append(out, le)
	case len(cmd) == 5: // case 2
		out[4] = le
		return out
	case len(cmd) == 5+int(cmd[4]): // case 3
		return append(out, le)
	default: // case 4
		out[len(out)-1] = le
		return out
	}
}
