package wire

import (
	"bytes"
	"fmt"
	"io"
)

// Signature identifies a function: a protocol version tag plus the raw
// signature bytes that form the store's key material. Only version 1 is
// defined by the client; other versions are decoded as-is and left to the
// store layer to warn about (spec leaves this lenient rather than
// rejecting the message).
type Signature struct {
	Version uint32
	Bytes   []byte
}

func writeSignature(buf *bytes.Buffer, s Signature) error {
	if err := writeVarInt32(buf, s.Version); err != nil {
		return fmt.Errorf("signature version: %w", err)
	}
	if err := writeVarBuff(buf, s.Bytes); err != nil {
		return fmt.Errorf("signature bytes: %w", err)
	}
	return nil
}

func readSignature(r *bytes.Reader) (Signature, error) {
	version, err := readVarInt32(r)
	if err != nil {
		return Signature{}, fmt.Errorf("signature version: %w", err)
	}
	data, err := readVarBuff(r)
	if err != nil {
		return Signature{}, fmt.Errorf("signature bytes: %w", err)
	}
	return Signature{Version: version, Bytes: data}, nil
}

// Metadata is the per-function payload a client pushes or a pull
// returns: a name, a size, and an opaque serialized blob.
type Metadata struct {
	FuncName       string
	FuncSize       uint32
	SerializedData []byte
}

func writeMetadata(buf *bytes.Buffer, m Metadata) error {
	if err := writeCString(buf, m.FuncName); err != nil {
		return err
	}
	if err := writeVarInt32(buf, m.FuncSize); err != nil {
		return fmt.Errorf("metadata func_size: %w", err)
	}
	if err := writeVarBuff(buf, m.SerializedData); err != nil {
		return fmt.Errorf("metadata serialized_data: %w", err)
	}
	return nil
}

func readMetadata(r *bytes.Reader) (Metadata, error) {
	name, err := readCString(r)
	if err != nil {
		return Metadata{}, err
	}
	size, err := readVarInt32(r)
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata func_size: %w", err)
	}
	data, err := readVarBuff(r)
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata serialized_data: %w", err)
	}
	return Metadata{FuncName: name, FuncSize: size, SerializedData: data}, nil
}

// FuncInfo pairs Metadata with the store's popularity counter for that
// signature; it is the shape returned by a successful pull.
type FuncInfo struct {
	Metadata   Metadata
	Popularity uint32
}

func writeFuncInfo(buf *bytes.Buffer, fi FuncInfo) error {
	if err := writeMetadata(buf, fi.Metadata); err != nil {
		return err
	}
	return writeVarInt32(buf, fi.Popularity)
}

func readFuncInfo(r *bytes.Reader) (FuncInfo, error) {
	m, err := readMetadata(r)
	if err != nil {
		return FuncInfo{}, err
	}
	pop, err := readVarInt32(r)
	if err != nil {
		return FuncInfo{}, fmt.Errorf("funcinfo popularity: %w", err)
	}
	return FuncInfo{Metadata: m, Popularity: pop}, nil
}

// FuncMd pairs Metadata with the Signature it was pushed under; it is
// the unit of work accepted by PUSH_MD.
type FuncMd struct {
	Metadata  Metadata
	Signature Signature
}

func writeFuncMd(buf *bytes.Buffer, fm FuncMd) error {
	if err := writeMetadata(buf, fm.Metadata); err != nil {
		return err
	}
	return writeSignature(buf, fm.Signature)
}

func readFuncMd(r *bytes.Reader) (FuncMd, error) {
	m, err := readMetadata(r)
	if err != nil {
		return FuncMd{}, err
	}
	sig, err := readSignature(r)
	if err != nil {
		return FuncMd{}, err
	}
	return FuncMd{Metadata: m, Signature: sig}, nil
}

// Message is any of the eight payload grammars this server handles,
// keyed by its Opcode.
type Message interface {
	Opcode() Opcode
	marshal(buf *bytes.Buffer) error
}

// OkMessage is the empty RPC_OK payload.
type OkMessage struct{}

func (OkMessage) Opcode() Opcode                { return OpRPCOk }
func (OkMessage) marshal(buf *bytes.Buffer) error { return nil }

func parseOk(r *bytes.Reader) (Message, error) {
	return OkMessage{}, nil
}

// FailMessage is RPC_FAIL: a status code plus a human-readable message.
type FailMessage struct {
	Status  uint32
	Message string
}

func (FailMessage) Opcode() Opcode { return OpRPCFail }
func (m FailMessage) marshal(buf *bytes.Buffer) error {
	if err := writeVarInt32(buf, m.Status); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return writeCString(buf, m.Message)
}

func parseFail(r *bytes.Reader) (Message, error) {
	status, err := readVarInt32(r)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	msg, err := readCString(r)
	if err != nil {
		return nil, fmt.Errorf("message: %w", err)
	}
	return FailMessage{Status: status, Message: msg}, nil
}

// NotifyMessage is RPC_NOTIFY: a protocol tag plus a message string. The
// server uses it to report expected-helo violations, invalid licenses,
// and unknown commands. A TLS ClientHello on a plaintext listener gets
// no reply at all; the connection is simply closed.
type NotifyMessage struct {
	Protocol uint32
	Message  string
}

func (NotifyMessage) Opcode() Opcode { return OpRPCNotify }
func (m NotifyMessage) marshal(buf *bytes.Buffer) error {
	protocol := m.Protocol
	if protocol == 0 {
		protocol = ProtocolVersion
	}
	if err := writeVarInt32(buf, protocol); err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	return writeCString(buf, m.Message)
}

func parseNotify(r *bytes.Reader) (Message, error) {
	protocol, err := readVarInt32(r)
	if err != nil {
		return nil, fmt.Errorf("protocol: %w", err)
	}
	msg, err := readCString(r)
	if err != nil {
		return nil, fmt.Errorf("message: %w", err)
	}
	return NotifyMessage{Protocol: protocol, Message: msg}, nil
}

// ProtocolVersion is the protocol number this server advertises in its
// own HELO-shaped replies (RPC_NOTIFY, RPC_HELO). It does not reject
// other versions offered by the client.
const ProtocolVersion = 2

// HeloMessage is RPC_HELO, the client's opening handshake. field_0x36 is
// of unknown semantics upstream; it is decoded and retained but never
// interpreted.
type HeloMessage struct {
	Protocol  uint32
	License   []byte
	HexraysID uint32
	Watermark uint16
	Field0x36 uint32
}

func (HeloMessage) Opcode() Opcode { return OpRPCHelo }
func (m HeloMessage) marshal(buf *bytes.Buffer) error {
	protocol := m.Protocol
	if protocol == 0 {
		protocol = ProtocolVersion
	}
	if err := writeVarInt32(buf, protocol); err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	if err := writeVarBuff(buf, m.License); err != nil {
		return fmt.Errorf("hexrays_license: %w", err)
	}
	var fixed [6]byte
	putUint32LE(fixed[0:4], m.HexraysID)
	putUint16LE(fixed[4:6], m.Watermark)
	buf.Write(fixed[:])
	if err := writeVarInt32(buf, m.Field0x36); err != nil {
		return fmt.Errorf("field_0x36: %w", err)
	}
	return nil
}

func parseHelo(r *bytes.Reader) (Message, error) {
	protocol, err := readVarInt32(r)
	if err != nil {
		return nil, fmt.Errorf("protocol: %w", err)
	}
	license, err := readVarBuff(r)
	if err != nil {
		return nil, fmt.Errorf("hexrays_license: %w", err)
	}
	var fixed [6]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, fmt.Errorf("hexrays_id/watermark: %w", err)
	}
	hexraysID := getUint32LE(fixed[0:4])
	watermark := getUint16LE(fixed[4:6])
	field0x36, err := readVarInt32(r)
	if err != nil {
		return nil, fmt.Errorf("field_0x36: %w", err)
	}
	return HeloMessage{
		Protocol:  protocol,
		License:   license,
		HexraysID: hexraysID,
		Watermark: watermark,
		Field0x36: field0x36,
	}, nil
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putUint16LE(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func getUint16LE(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

// PullMDMessage is PULL_MD: a flags word, an unknown int list echoed
// back from upstream but never interpreted, and the signatures to look
// up.
type PullMDMessage struct {
	Flags     uint32
	UknList   []uint32
	FuncInfos []Signature
}

func (PullMDMessage) Opcode() Opcode { return OpPullMD }
func (m PullMDMessage) marshal(buf *bytes.Buffer) error {
	if err := writeVarInt32(buf, m.Flags); err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	if err := writeObjectList(buf, m.UknList, func(b *bytes.Buffer, v uint32) error {
		return writeVarInt32(b, v)
	}); err != nil {
		return fmt.Errorf("ukn_list: %w", err)
	}
	if err := writeObjectList(buf, m.FuncInfos, writeSignature); err != nil {
		return fmt.Errorf("funcInfos: %w", err)
	}
	return nil
}

func parsePullMD(r *bytes.Reader) (Message, error) {
	flags, err := readVarInt32(r)
	if err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	ukn, err := readObjectList(r, readVarInt32)
	if err != nil {
		return nil, fmt.Errorf("ukn_list: %w", err)
	}
	sigs, err := readObjectList(r, readSignature)
	if err != nil {
		return nil, fmt.Errorf("funcInfos: %w", err)
	}
	return PullMDMessage{Flags: flags, UknList: ukn, FuncInfos: sigs}, nil
}

// PullMDResultMessage is PULL_MD_RESULT: a found/not-found flag per
// requested signature, and the FuncInfo for each hit, in request order.
type PullMDResultMessage struct {
	Found   []uint32
	Results []FuncInfo
}

func (PullMDResultMessage) Opcode() Opcode { return OpPullMDResult }
func (m PullMDResultMessage) marshal(buf *bytes.Buffer) error {
	if err := writeObjectList(buf, m.Found, func(b *bytes.Buffer, v uint32) error {
		return writeVarInt32(b, v)
	}); err != nil {
		return fmt.Errorf("found: %w", err)
	}
	if err := writeObjectList(buf, m.Results, writeFuncInfo); err != nil {
		return fmt.Errorf("results: %w", err)
	}
	return nil
}

func parsePullMDResult(r *bytes.Reader) (Message, error) {
	found, err := readObjectList(r, readVarInt32)
	if err != nil {
		return nil, fmt.Errorf("found: %w", err)
	}
	results, err := readObjectList(r, readFuncInfo)
	if err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	return PullMDResultMessage{Found: found, Results: results}, nil
}

// PushMDMessage is PUSH_MD: client identification fields (idb/input
// paths, input md5, hostname), the FuncMds to push, and funcEas, the raw
// absolute address of each pushed function (not the +1/-1 address
// adapter — the reference grammar uses a plain VarInt64 here).
// field_0x10 is of unknown semantics upstream; decoded but unused.
type PushMDMessage struct {
	Field0x10 uint32
	IdbPath   string
	InputPath string
	MD5       [16]byte
	Hostname  string
	FuncInfos []FuncMd
	FuncEas   []uint64
}

func (PushMDMessage) Opcode() Opcode { return OpPushMD }
func (m PushMDMessage) marshal(buf *bytes.Buffer) error {
	if err := writeVarInt32(buf, m.Field0x10); err != nil {
		return fmt.Errorf("field_0x10: %w", err)
	}
	if err := writeCString(buf, m.IdbPath); err != nil {
		return fmt.Errorf("idb_path: %w", err)
	}
	if err := writeCString(buf, m.InputPath); err != nil {
		return fmt.Errorf("input_path: %w", err)
	}
	buf.Write(m.MD5[:])
	if err := writeCString(buf, m.Hostname); err != nil {
		return fmt.Errorf("hostname: %w", err)
	}
	if err := writeObjectList(buf, m.FuncInfos, writeFuncMd); err != nil {
		return fmt.Errorf("funcInfos: %w", err)
	}
	if err := writeObjectList(buf, m.FuncEas, func(b *bytes.Buffer, v uint64) error {
		return writeVarInt64(b, v)
	}); err != nil {
		return fmt.Errorf("funcEas: %w", err)
	}
	return nil
}

func parsePushMD(r *bytes.Reader) (Message, error) {
	field0x10, err := readVarInt32(r)
	if err != nil {
		return nil, fmt.Errorf("field_0x10: %w", err)
	}
	idbPath, err := readCString(r)
	if err != nil {
		return nil, fmt.Errorf("idb_path: %w", err)
	}
	inputPath, err := readCString(r)
	if err != nil {
		return nil, fmt.Errorf("input_path: %w", err)
	}
	var md5 [16]byte
	if _, err := io.ReadFull(r, md5[:]); err != nil {
		return nil, fmt.Errorf("input_md5: %w", err)
	}
	hostname, err := readCString(r)
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}
	funcInfos, err := readObjectList(r, readFuncMd)
	if err != nil {
		return nil, fmt.Errorf("funcInfos: %w", err)
	}
	funcEas, err := readObjectList(r, readVarInt64)
	if err != nil {
		return nil, fmt.Errorf("funcEas: %w", err)
	}
	return PushMDMessage{
		Field0x10: field0x10,
		IdbPath:   idbPath,
		InputPath: inputPath,
		MD5:       md5,
		Hostname:  hostname,
		FuncInfos: funcInfos,
		FuncEas:   funcEas,
	}, nil
}

// PushMDResultMessage is PUSH_MD_RESULT: one flag per pushed FuncMd, 1 if
// the signature was newly inserted, 0 if it already existed.
type PushMDResultMessage struct {
	ResultsFlags []uint32
}

func (PushMDResultMessage) Opcode() Opcode { return OpPushMDResult }
func (m PushMDResultMessage) marshal(buf *bytes.Buffer) error {
	return writeObjectList(buf, m.ResultsFlags, func(b *bytes.Buffer, v uint32) error {
		return writeVarInt32(b, v)
	})
}

func parsePushMDResult(r *bytes.Reader) (Message, error) {
	flags, err := readObjectList(r, readVarInt32)
	if err != nil {
		return nil, fmt.Errorf("resultsFlags: %w", err)
	}
	return PushMDResultMessage{ResultsFlags: flags}, nil
}
