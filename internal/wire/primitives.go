package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/synacktiv/lumina-server/internal/varint"
)

func writeVarString(buf *bytes.Buffer, s string) error {
	if err := writeVarBuff(buf, []byte(s)); err != nil {
		return fmt.Errorf("varstring: %w", err)
	}
	return nil
}

func readVarString(r *bytes.Reader) (string, error) {
	b, err := readVarBuff(r)
	if err != nil {
		return "", fmt.Errorf("varstring: %w", err)
	}
	return string(b), nil
}

func writeVarBuff(buf *bytes.Buffer, data []byte) error {
	enc, err := varint.EncodeInt32(int64(len(data)))
	if err != nil {
		return fmt.Errorf("varbuff length: %w", err)
	}
	buf.Write(enc)
	buf.Write(data)
	return nil
}

func readVarBuff(r *bytes.Reader) ([]byte, error) {
	n, err := varint.DecodeInt32(r)
	if err != nil {
		return nil, fmt.Errorf("varbuff length: %w", err)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("varbuff data: %w", err)
	}
	return data, nil
}

func writeCString(buf *bytes.Buffer, s string) error {
	buf.WriteString(s)
	buf.WriteByte(0x00)
	return nil
}

func readCString(r *bytes.Reader) (string, error) {
	var out bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("cstring: unterminated: %w", err)
		}
		if b == 0x00 {
			return out.String(), nil
		}
		out.WriteByte(b)
	}
}

func writeObjectList[T any](buf *bytes.Buffer, items []T, writeItem func(*bytes.Buffer, T) error) error {
	enc, err := varint.EncodeInt32(int64(len(items)))
	if err != nil {
		return fmt.Errorf("objectlist count: %w", err)
	}
	buf.Write(enc)
	for i, item := range items {
		if err := writeItem(buf, item); err != nil {
			return fmt.Errorf("objectlist[%d]: %w", i, err)
		}
	}
	return nil
}

func readObjectList[T any](r *bytes.Reader, readItem func(*bytes.Reader) (T, error)) ([]T, error) {
	n, err := varint.DecodeInt32(r)
	if err != nil {
		return nil, fmt.Errorf("objectlist count: %w", err)
	}
	items := make([]T, 0, n)
	for i := uint32(0); i < n; i++ {
		item, err := readItem(r)
		if err != nil {
			return nil, fmt.Errorf("objectlist[%d]: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func writeVarInt32(buf *bytes.Buffer, x uint32) error {
	enc, err := varint.EncodeInt32(int64(x))
	if err != nil {
		return err
	}
	buf.Write(enc)
	return nil
}

func readVarInt32(r *bytes.Reader) (uint32, error) {
	return varint.DecodeInt32(r)
}

func writeVarInt64(buf *bytes.Buffer, x uint64) error {
	enc, err := varint.EncodeInt64(x)
	if err != nil {
		return err
	}
	buf.Write(enc)
	return nil
}

func readVarInt64(r *bytes.Reader) (uint64, error) {
	return varint.DecodeInt64(r)
}
