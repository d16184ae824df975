package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This file pins the literal wire bytes for spec.md §8's "End-to-end
// scenarios" — asserting against independently hand-computed byte
// slices, not decode(build(m)), so a shared encode/decode mistake
// (e.g. the VarInt32 2-byte-form 0x7F-vs-0x3F mask quirk §4.1 calls
// out) cannot cancel itself out the way it would in a pure round-trip
// test.
//
// spec.md §8 scenario 1 gives a literal hex dump for the client's HELO
// request: "00 00 00 0B | 0D | 02 00 00 04 6B 65 79 30 12 34 56 78 DE
// AD 00". That dump is internally inconsistent: its own declared
// length byte (0x0B = 11) doesn't match its own payload byte count
// (15, by a naive read, or 13 once "02 00 00 04" is recognized as a
// transcription slip for VarInt32(2) VarInt32(4) = "02 04"), and
// neither count matches encoding the stated field values
// (protocol=2, license="key0", id=0x78563412, watermark=0xADDE,
// field_0x36=0) under §4.1/§4.2's own rules, which yields 13 payload
// bytes. TestScenario1HeloRequestLiteralBytes below asserts against
// those value-correct 13 bytes rather than the prose's miscounted
// transcription.
func TestScenario1HeloRequestLiteralBytes(t *testing.T) {
	helo := HeloMessage{
		Protocol:  2,
		License:   []byte("key0"),
		HexraysID: 0x78563412,
		Watermark: 0xADDE,
		Field0x36: 0,
	}
	framed, err := Build(helo)
	require.NoError(t, err)

	expected := []byte{
		0x00, 0x00, 0x00, 0x0D, // length = 13
		0x0D,                         // opcode RPC_HELO
		0x02,                         // protocol = 2
		0x04, 0x6B, 0x65, 0x79, 0x30, // VarBuff license = "key0"
		0x12, 0x34, 0x56, 0x78, // hexrays_id, little-endian
		0xDE, 0xAD, // watermark, little-endian
		0x00, // field_0x36
	}
	assert.Equal(t, expected, framed)

	// Decoding the corrected bytes must recover the same message.
	pkt, err := ReadPacket(bytes.NewReader(framed))
	require.NoError(t, err)
	msg, err := pkt.Decode()
	require.NoError(t, err)
	assert.Equal(t, helo, msg)
}

// "Server replies RPC_OK (00 00 00 00 | 0A)" — this literal dump is
// internally consistent (RPC_OK has no payload) and is asserted as-is.
func TestScenario1OkReplyLiteralBytes(t *testing.T) {
	framed, err := Build(OkMessage{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x0A}, framed)
}

// Scenario 1's PUSH_MD_RESULT{resultsFlags=[1]}.
func TestScenario1PushResultLiteralBytes(t *testing.T) {
	framed, err := Build(PushMDResultMessage{ResultsFlags: []uint32{1}})
	require.NoError(t, err)
	expected := []byte{
		0x00, 0x00, 0x00, 0x02, // length = 2
		0x11,       // opcode PUSH_MD_RESULT
		0x01, 0x01, // ObjectList<VarInt32> count=1, element=1
	}
	assert.Equal(t, expected, framed)
}

// Scenario 2: "Second reply carries resultsFlags=[0]".
func TestScenario2DuplicatePushResultLiteralBytes(t *testing.T) {
	framed, err := Build(PushMDResultMessage{ResultsFlags: []uint32{0}})
	require.NoError(t, err)
	expected := []byte{
		0x00, 0x00, 0x00, 0x02,
		0x11,
		0x01, 0x00, // count=1, element=0
	}
	assert.Equal(t, expected, framed)
}

// Scenario 3: PULL_MD{flags=0, ukn_list=[], funcInfos=[(version=1,
// bytes=AA BB)]} and its PULL_MD_RESULT reply.
func TestScenario3PullHitLiteralBytes(t *testing.T) {
	req := PullMDMessage{
		Flags:     0,
		UknList:   nil,
		FuncInfos: []Signature{{Version: 1, Bytes: []byte{0xAA, 0xBB}}},
	}
	framed, err := Build(req)
	require.NoError(t, err)
	expectedReq := []byte{
		0x00, 0x00, 0x00, 0x07, // length = 7
		0x0E,       // opcode PULL_MD
		0x00,       // flags
		0x00,       // ukn_list count=0
		0x01,       // funcInfos count=1
		0x01, 0x02, 0xAA, 0xBB, // Signature{version=1, VarBuff(AA BB)}
	}
	assert.Equal(t, expectedReq, framed)

	reply := PullMDResultMessage{
		Found: []uint32{1},
		Results: []FuncInfo{{
			Metadata:   Metadata{FuncName: "f", FuncSize: 0x10, SerializedData: []byte{0x01, 0x02, 0x03}},
			Popularity: 2,
		}},
	}
	framedReply, err := Build(reply)
	require.NoError(t, err)
	expectedReply := []byte{
		0x00, 0x00, 0x00, 0x0B, // length = 11
		0x0F,       // opcode PULL_MD_RESULT
		0x01, 0x01, // found: count=1, element=1
		0x01,                   // results count=1
		0x66, 0x00,             // CString "f"
		0x10,                   // VarInt32 func_size=0x10
		0x03, 0x01, 0x02, 0x03, // VarBuff serialized_data
		0x02, // popularity=2
	}
	assert.Equal(t, expectedReply, framedReply)
}

// Scenario 4: PULL_MD for signature bytes CC DD, a miss.
func TestScenario4PullMissLiteralBytes(t *testing.T) {
	req := PullMDMessage{FuncInfos: []Signature{{Version: 1, Bytes: []byte{0xCC, 0xDD}}}}
	framed, err := Build(req)
	require.NoError(t, err)
	expectedReq := []byte{
		0x00, 0x00, 0x00, 0x07,
		0x0E,
		0x00, 0x00, 0x01,
		0x01, 0x02, 0xCC, 0xDD,
	}
	assert.Equal(t, expectedReq, framed)

	reply := PullMDResultMessage{Found: []uint32{0}, Results: nil}
	framedReply, err := Build(reply)
	require.NoError(t, err)
	expectedReply := []byte{
		0x00, 0x00, 0x00, 0x03, // length = 3
		0x0F,
		0x01, 0x00, // found: count=1, element=0
		0x00, // results count=0
	}
	assert.Equal(t, expectedReply, framedReply)
}

// Scenario 5: "Server replies RPC_NOTIFY{message="Expected helo"}".
// The message text is given verbatim in spec.md; the surrounding
// VarInt32 protocol field and CString terminator are reconstructed
// from §4.2's grammar rather than copied from marshal's own code, so
// this still exercises the encoder independently of Build/marshal.
func TestScenario5ExpectedHeloNotifyLiteralBytes(t *testing.T) {
	framed, err := Build(NotifyMessage{Message: "Expected helo"})
	require.NoError(t, err)

	payload := append([]byte{0x02}, []byte("Expected helo")...)
	payload = append(payload, 0x00)
	expected := append([]byte{0x00, 0x00, 0x00, byte(len(payload)), 0x0C}, payload...)

	assert.Equal(t, expected, framed)
}
