package apdu

import (
	"github.com/gregLibert/ccid-transceiver/pkg/ccid"
)

// BlockTransmitter is implemented by *ccid.Transceiver.
type BlockTransmitter interface {
	Transmit(payload []byte) (ccid.DataBlock, error)
}

// CCIDCard exposes a CCID transceiver as a Transmitter: each APDU travels in
// one XfrBlock and the reassembled DataBlock payload is the response APDU.
type CCIDCard struct {
	tr BlockTransmitter
}

// NewCCIDCard wraps tr. The card must already be powered on.
func NewCCIDCard(tr BlockTransmitter) *CCIDCard {
	return &CCIDCard{tr: tr}
}

// Transmit sends cmd and returns the raw response APDU.
func (c *CCIDCard) Transmit(cmd []byte) ([]byte, error) {
	block, err := c.tr.Transmit(cmd)
	if err != nil {
		return nil, err
	}
	return block.Data(), nil
}
