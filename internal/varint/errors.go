// Package varint implements the three bespoke variable-length integer
// encodings used on the lumina wire: VarInt16, VarInt32, and VarInt64.
// They mirror the packing routines of the original disassembler client
// (pack_dw/unpack_dw, pack_dd/unpack_dd, pack_dq/unpack_dq) and are not
// related to protobuf-style varints or standard XDR integers.
package varint

import "fmt"

// RangeError reports an encode-time value outside the encodable range
// for the requested width.
type RangeError struct {
	Value int64
	Width string // "VarInt16", "VarInt32", or "VarInt64 (address)"
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("varint: value %d out of range for %s", e.Value, e.Width)
}

// ProtocolError reports a decode-time failure: a short read. Every
// first byte selects a valid form, so no prefix is rejected.
type ProtocolError struct {
	Width string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("varint: %s: %v", e.Width, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
