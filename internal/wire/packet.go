package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// maxPayloadLen bounds the declared packet length so a corrupt or
// hostile 4-byte length field cannot force an arbitrarily large
// allocation before any payload byte is read.
const maxPayloadLen = 64 << 20

// Packet is the envelope: an opcode and its raw, length-bounded payload.
// Decoding a packet never inspects the payload grammar; that is the job
// of Decode.
type Packet struct {
	Opcode  Opcode
	Payload []byte
}

// ReadPacket reads one framed packet from r: a 4-byte big-endian length,
// a 1-byte opcode, then exactly length bytes of payload. The length
// field covers the payload only.
func ReadPacket(r io.Reader) (Packet, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Packet{}, &ProtocolError{Context: "packet header", Err: err}
	}
	length := binary.BigEndian.Uint32(header[0:4])
	opcode := Opcode(header[4])

	if length > maxPayloadLen {
		return Packet{}, &ProtocolError{Context: "packet header", Err: fmt.Errorf("payload length %d exceeds maximum %d", length, maxPayloadLen)}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Packet{}, &ProtocolError{Context: "packet payload", Err: err}
	}
	return Packet{Opcode: opcode, Payload: payload}, nil
}

// WritePacket frames payload behind its 4-byte length and 1-byte opcode
// and writes it to w in a single call.
func WritePacket(w io.Writer, opcode Opcode, payload []byte) error {
	out := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(payload)))
	out[4] = byte(opcode)
	copy(out[5:], payload)
	if _, err := w.Write(out); err != nil {
		return &ProtocolError{Context: "packet write", Err: err}
	}
	return nil
}

// Build marshals msg and frames it behind its declared opcode, ready to
// write to a connection.
func Build(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := msg.marshal(&buf); err != nil {
		return nil, &ProtocolError{Context: fmt.Sprintf("build %s", msg.Opcode()), Err: err}
	}
	out := make([]byte, 5+buf.Len())
	binary.BigEndian.PutUint32(out[0:4], uint32(buf.Len()))
	out[4] = byte(msg.Opcode())
	copy(out[5:], buf.Bytes())
	return out, nil
}

// Decode parses p's payload according to its opcode's grammar. It
// returns a ProtocolError if the opcode is unknown, or if the grammar
// does not exhaust the payload exactly (trailing or missing bytes both
// indicate a malformed message).
func (p Packet) Decode() (Message, error) {
	parse, ok := parsers[p.Opcode]
	if !ok {
		return nil, &ProtocolError{Context: "decode", Err: fmt.Errorf("unknown opcode %s", p.Opcode)}
	}

	r := bytes.NewReader(p.Payload)
	msg, err := parse(r)
	if err != nil {
		return nil, &ProtocolError{Context: fmt.Sprintf("decode %s", p.Opcode), Err: err}
	}
	if r.Len() != 0 {
		return nil, &ProtocolError{Context: fmt.Sprintf("decode %s", p.Opcode), Err: fmt.Errorf("%d trailing bytes", r.Len())}
	}
	return msg, nil
}

var parsers = map[Opcode]func(*bytes.Reader) (Message, error){
	OpRPCOk:        parseOk,
	OpRPCFail:      parseFail,
	OpRPCNotify:    parseNotify,
	OpRPCHelo:      parseHelo,
	OpPullMD:       parsePullMD,
	OpPullMDResult: parsePullMDResult,
	OpPushMD:       parsePushMD,
	OpPushMDResult: parsePushMDResult,
}
