package varint

import "io"

// EncodeInt32 encodes x in [0, 0xFFFFFFFF] using the shortest of four forms:
//
//	0xxxxxxx                             1 byte  (x <= 0x7F)
//	10xxxxxx xxxxxxxx                    2 bytes (0x7F < x <= 0x3FFF)
//	110xxxxx xxxxxxxx xxxxxxxx xxxxxxxx  4 bytes (0x3FFF < x <= 0x1FFFFFFF)
//	11111111 [4 bytes big-endian]        5 bytes (x > 0x1FFFFFFF)
//
// Note the mask for the 2-byte form is 0x7F, not 0x3F: the top bit of
// the second payload byte carries value bits, it is not a continuation
// marker the way a protobuf varint would use it.
func EncodeInt32(x int64) ([]byte, error) {
	if x < 0 || x > 0xFFFFFFFF {
		return nil, &RangeError{Value: x, Width: "VarInt32"}
	}

	switch {
	case x > 0x1FFFFFFF:
		return []byte{0xFF, byte(x >> 24), byte(x >> 16), byte(x >> 8), byte(x)}, nil
	case x > 0x3FFF:
		return []byte{0xC0 | byte(x>>24), byte(x >> 16), byte(x >> 8), byte(x)}, nil
	case x > 0x7F:
		return []byte{0x80 | byte(x>>8), byte(x)}, nil
	default:
		return []byte{byte(x)}, nil
	}
}

// DecodeInt32 reads one VarInt32 value from r.
func DecodeInt32(r io.Reader) (uint32, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return 0, &ProtocolError{Width: "VarInt32", Err: err}
	}
	b := first[0]

	var extra int
	var mask byte
	switch b >> 5 {
	case 0, 1, 2, 3: // 0xxxxxxx
		extra, mask = 0, 0x7F
	case 4, 5: // 10xxxxxx
		extra, mask = 1, 0x7F
	case 6: // 110xxxxx
		extra, mask = 3, 0x3F
	default: // 111xxxxx
		extra, mask = 4, 0x00
	}

	num := uint32(b & mask)
	if extra > 0 {
		buf := make([]byte, extra)
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, &ProtocolError{Width: "VarInt32", Err: err}
		}
		for _, c := range buf {
			num = (num << 8) | uint32(c)
		}
	}

	return num, nil
}
