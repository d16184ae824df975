package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketFramingMultipleOnOneStream(t *testing.T) {
	var stream bytes.Buffer

	first, err := Build(OkMessage{})
	require.NoError(t, err)
	second, err := Build(NotifyMessage{Protocol: 2, Message: "hi"})
	require.NoError(t, err)

	stream.Write(first)
	stream.Write(second)

	p1, err := ReadPacket(&stream)
	require.NoError(t, err)
	assert.Equal(t, OpRPCOk, p1.Opcode)

	p2, err := ReadPacket(&stream)
	require.NoError(t, err)
	assert.Equal(t, OpRPCNotify, p2.Opcode)

	msg2, err := p2.Decode()
	require.NoError(t, err)
	assert.Equal(t, NotifyMessage{Protocol: 2, Message: "hi"}, msg2)

	assert.Equal(t, 0, stream.Len())
}

func TestPacketLengthCoversPayloadOnly(t *testing.T) {
	msg := FailMessage{Status: 1, Message: "err"}
	framed, err := Build(msg)
	require.NoError(t, err)

	pkt, err := ReadPacket(bytes.NewReader(framed))
	require.NoError(t, err)

	assert.Equal(t, framed[5:], pkt.Payload)
	assert.Equal(t, len(framed)-5, len(pkt.Payload))
}

func TestDecodeFailsOnTrailingBytes(t *testing.T) {
	msg := PushMDResultMessage{ResultsFlags: []uint32{1}}
	framed, err := Build(msg)
	require.NoError(t, err)

	// Corrupt the declared length to claim one extra trailing byte that
	// the grammar never consumes.
	corrupted := append(framed, 0x00)
	corrupted[3] = framed[3] + 1

	pkt, err := ReadPacket(bytes.NewReader(corrupted))
	require.NoError(t, err)

	_, err = pkt.Decode()
	assert.Error(t, err)
}

func TestDecodeFailsOnShortPayload(t *testing.T) {
	msg := PushMDResultMessage{ResultsFlags: []uint32{1, 2, 3}}
	framed, err := Build(msg)
	require.NoError(t, err)

	// Shrink the declared length so the grammar runs out of bytes mid-parse.
	truncated := make([]byte, len(framed))
	copy(truncated, framed)
	truncated[3] = 1

	pkt, err := ReadPacket(bytes.NewReader(truncated[:5+1]))
	require.NoError(t, err)

	_, err = pkt.Decode()
	assert.Error(t, err)
}

func TestReadPacketRejectsOversizedLength(t *testing.T) {
	header := []byte{0xFF, 0xFF, 0xFF, 0xFF, byte(OpRPCOk)}
	_, err := ReadPacket(bytes.NewReader(header))
	assert.Error(t, err)
}
