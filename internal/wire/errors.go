// Package wire implements the lumina message grammar: the length helpers
// built on internal/varint (VarString, VarBuff, CString, ObjectList), the
// eight handled RPC message types, and the packet frame that carries them.
package wire

import "fmt"

// ProtocolError reports a malformed frame or payload: a short read, an
// unexhausted or overrun payload, or a field that fails its own grammar.
type ProtocolError struct {
	Context string
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wire: %s: %v", e.Context, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
