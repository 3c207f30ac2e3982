package codec

import "encoding/binary"

var (
	frameHeader = [2]byte{0xFA, 0xD4}
	frameFooter = [2]byte{0x2D, 0xDF}
)

const payloadHeaderSize = 12

// Payload is the 12-byte fixed header plus the variable params tail.
type Payload struct {
	MessageType  MessageType
	MessageFlags MessageFlags
	Seq          uint8
	Unknown      [3]byte
	DeviceID     uint32
	Params       Params
}

// MessageTypeID is the dispatch key derived from MessageType and MessageFlags.
func (p Payload) MessageTypeID() MessageTypeID {
	return ComposeMessageTypeID(p.MessageType, p.MessageFlags)
}

func (p Payload) encode() []byte {
	params := p.Params.encode()
	out := make([]byte, payloadHeaderSize+len(params))
	out[0] = byte(p.MessageType)
	out[1] = byte(p.MessageFlags)
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(params)))
	out[4] = p.Seq
	copy(out[5:8], p.Unknown[:])
	binary.LittleEndian.PutUint32(out[8:12], p.DeviceID)
	copy(out[12:], params)
	return out
}

func decodePayload(data []byte) (Payload, error) {
	if len(data) < payloadHeaderSize {
		return Payload{}, &ParseError{Kind: ErrTruncated, Msg: "payload shorter than fixed header"}
	}
	if data[0]&0xF0 != 0 {
		return Payload{}, &ParseError{Kind: ErrReservedBits, Msg: "message_type high nibble nonzero"}
	}
	if data[1]&0xF0 != 0 {
		return Payload{}, &ParseError{Kind: ErrReservedBits, Msg: "message_flags high nibble nonzero"}
	}
	paramsSize := binary.LittleEndian.Uint16(data[2:4])
	rest := data[payloadHeaderSize:]
	if int(paramsSize) != len(rest) {
		return Payload{}, &ParseError{Kind: ErrLength, Msg: "params_size does not match actual payload length"}
	}

	p := Payload{
		MessageType:  MessageType(data[0]),
		MessageFlags: MessageFlags(data[1]),
		Seq:          data[4],
		DeviceID:     binary.LittleEndian.Uint32(data[8:12]),
	}
	copy(p.Unknown[:], data[5:8])

	params, err := decodeParams(p.MessageTypeID(), rest)
	if err != nil {
		return Payload{}, err
	}
	p.Params = params
	return p, nil
}

// Frame is the complete framed-and-checksummed protocol unit exchanged over
// UDP: header, payload length, message id, payload, CRC, footer.
type Frame struct {
	MessageID uint32
	Payload   Payload
}

// Build recomputes payload_length, params_size, and CRC, and emits the
// canonical wire bytes for f. Parse(f.Build()) reproduces f exactly.
func (f Frame) Build() []byte {
	payload := f.Payload.encode()

	out := make([]byte, 0, 2+2+4+len(payload)+2+2)
	out = append(out, frameHeader[:]...)

	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	out = append(out, lenBuf[:]...)

	var idBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], f.MessageID)
	out = append(out, idBuf[:]...)

	out = append(out, payload...)

	crc := crc16(payload)
	var crcBuf [2]byte
	binary.LittleEndian.PutUint16(crcBuf[:], crc)
	out = append(out, crcBuf[:]...)

	out = append(out, frameFooter[:]...)
	return out
}

// Parse validates framing, length, and CRC, decodes the payload, and
// dispatches params by message_type_id. An unrecognized message_type_id is
// not an error: Params is a RawParams holding the params bytes verbatim.
func Parse(data []byte) (Frame, error) {
	const minFrameSize = 2 + 2 + 4 + payloadHeaderSize + 2 + 2
	if len(data) < minFrameSize {
		return Frame{}, &ParseError{Kind: ErrTruncated, Msg: "frame shorter than minimum size"}
	}
	if data[0] != frameHeader[0] || data[1] != frameHeader[1] {
		return Frame{}, &ParseError{Kind: ErrFraming, Msg: "header magic mismatch"}
	}

	payloadLen := binary.LittleEndian.Uint16(data[2:4])
	messageID := binary.LittleEndian.Uint32(data[4:8])

	expected := 2 + 2 + 4 + int(payloadLen) + 2 + 2
	if len(data) != expected {
		return Frame{}, &ParseError{Kind: ErrLength, Msg: "declared payload_length does not match frame size"}
	}

	payloadBytes := data[8 : 8+int(payloadLen)]
	crcBytes := data[8+int(payloadLen) : 8+int(payloadLen)+2]
	footerBytes := data[8+int(payloadLen)+2 : 8+int(payloadLen)+4]

	if footerBytes[0] != frameFooter[0] || footerBytes[1] != frameFooter[1] {
		return Frame{}, &ParseError{Kind: ErrFraming, Msg: "footer magic mismatch"}
	}

	gotCrc := binary.LittleEndian.Uint16(crcBytes)
	wantCrc := crc16(payloadBytes)
	if gotCrc != wantCrc {
		return Frame{}, &ParseError{Kind: ErrCrc, Msg: "CRC-16/XMODEM mismatch"}
	}

	payload, err := decodePayload(payloadBytes)
	if err != nil {
		return Frame{}, err
	}

	return Frame{MessageID: messageID, Payload: payload}, nil
}
