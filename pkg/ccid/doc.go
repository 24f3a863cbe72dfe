/*
Package ccid implements the bulk-transfer side of the USB Chip/Smart Card
Interface Device class: framing commands for the reader, correlating its
responses by sequence number, and reassembling replies that span several
bulk-in packets.

# Wire Format

Every bulk message starts with a 10-byte header. Multi-byte integers are
little-endian.

	Offset  Size  Field
	0       1     Message type (0x62 IccPowerOn, 0x6F XfrBlock, 0x80 DataBlock)
	1       4     Length of the payload following the header
	5       1     Slot
	6       1     Sequence number (echoed by the reader)
	7       1     Status (response) / command specific
	8       1     Error (response) / command specific
	9       1     Chain parameter (response) / command specific
	10      n     Payload

The status byte of a response packs two fields:
  - bits 0-1: ICC status (0 = card present and active).
  - bits 6-7: command status (0 = processed, 1 = failed, 2 = time extension).

# Exchanges

A Transceiver issues one command at a time and blocks until the matching
DataBlock arrives. While the card is still busy the reader answers with a
time extension request; those blocks are dropped and the transceiver keeps
reading without re-sending the command.

	tr := ccid.NewTransceiver(conn, bulkIn, bulkOut, ccid.WithLogger(logger))

	atr, err := tr.PowerOn()
	if err != nil {
	    log.Fatal(err)
	}

	block, err := tr.Transmit([]byte{0x00, 0xA4, 0x04, 0x00})
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Printf("ATR %X, reply %X\n", atr.Data(), block.Data())

The connection and endpoints are borrowed: the Transceiver never opens,
closes or reconfigures them.
*/
package ccid
