package ccid

import "encoding/binary"

// Command headers share the first seven bytes with every CCID message; bytes
// 7-9 are command specific:
//
//	IccPowerOn: bPowerSelect (0 = automatic), abRFU[2]
//	XfrBlock:   bBWI (0), wLevelParameter (0x0000)

// EncodePowerOn builds the PC_to_RDR_IccPowerOn frame (CCID 6.1.1).
func EncodePowerOn(slot, seq byte) []byte {
	frame := make([]byte, HeaderLength)
	putHeader(frame, MessageIccPowerOn, 0, slot, seq)
	frame[7] = VoltageAutomatic
	return frame
}

// EncodeXfrBlock builds the PC_to_RDR_XfrBlock frame (CCID 6.1.4) carrying payload.
func EncodeXfrBlock(slot, seq byte, payload []byte) []byte {
	frame := make([]byte, HeaderLength+len(payload))
	putHeader(frame, MessageXfrBlock, uint32(len(payload)), slot, seq)
	copy(frame[HeaderLength:], payload)
	return frame
}

func putHeader(frame []byte, typ MessageType, length uint32, slot, seq byte) {
	frame[0] = byte(typ)
	binary.LittleEndian.PutUint32(frame[1:5], length)
	frame[5] = slot
	frame[6] = seq
}
