package varint

import "io"

// EncodeInt64 encodes x in [0, 2^64-1] as the concatenation of two
// VarInt32 values: the low 32 bits first, then the high 32 bits.
func EncodeInt64(x uint64) ([]byte, error) {
	low, err := EncodeInt32(int64(x & 0xFFFFFFFF))
	if err != nil {
		return nil, err
	}
	high, err := EncodeInt32(int64(x >> 32))
	if err != nil {
		return nil, err
	}
	return append(low, high...), nil
}

// DecodeInt64 reads one VarInt64 value (a VarInt32 low word followed
// by a VarInt32 high word) from r.
func DecodeInt64(r io.Reader) (uint64, error) {
	low, err := DecodeInt32(r)
	if err != nil {
		return 0, &ProtocolError{Width: "VarInt64", Err: err}
	}
	high, err := DecodeInt32(r)
	if err != nil {
		return 0, &ProtocolError{Width: "VarInt64", Err: err}
	}
	return (uint64(high) << 32) | uint64(low), nil
}

// EncodeAddress encodes a signed logical address as a VarInt64 using
// the wire's +1 shift, so that the logical value -1 (no address) is
// encoded as the unsigned value 0. Used for ea_t/asize_t/adiff_t
// fields.
func EncodeAddress(logical int64) ([]byte, error) {
	wire := logical + 1
	if wire < 0 {
		return nil, &RangeError{Value: logical, Width: "VarInt64 (address)"}
	}
	return EncodeInt64(uint64(wire))
}

// DecodeAddress reads a VarInt64 and applies the wire's -1 shift to
// recover the logical address.
func DecodeAddress(r io.Reader) (int64, error) {
	wire, err := DecodeInt64(r)
	if err != nil {
		return 0, err
	}
	return int64(wire) - 1, nil
}
