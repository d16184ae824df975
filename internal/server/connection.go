package server

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/synacktiv/lumina-server/internal/logger"
)

// tlsClientHelloPrefix is the start of a TLS 1.2 ClientHello record
// header (content type handshake, legacy version 3.1). Seeing it on a
// listener configured for plaintext means IDA was pointed at the
// wrong port or certificate, and spec.md §8 calls for closing without
// any RPC_NOTIFY reply — the peer is speaking TLS, not the framing
// this connection expects.
var tlsClientHelloPrefix = []byte{0x16, 0x03, 0x01}

// bufReadWriter pairs a buffered Reader (so the plaintext guard can
// Peek without losing bytes) with the raw Writer of the connection it
// wraps.
type bufReadWriter struct {
	io.Reader
	io.Writer
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	sessionID := uuid.NewString()
	log := logger.With("session", sessionID, "remote", conn.RemoteAddr().String())

	s.cfg.Metrics.SessionStarted()
	defer s.cfg.Metrics.SessionEnded()

	var rw io.ReadWriter
	var dl deadliner = conn

	if s.cfg.TLSConfig != nil {
		tlsConn := tls.Server(conn, s.cfg.TLSConfig)
		if err := tlsConn.HandshakeContext(context.Background()); err != nil {
			log.Warn("TLS handshake failed", "error", (&TransportError{Context: "handshake", Err: err}).Error())
			s.cfg.Metrics.ErrorObserved("transport")
			return
		}
		rw = tlsConn
		dl = tlsConn
	} else {
		if err := conn.SetDeadline(time.Now().Add(s.cfg.SessionTimeout)); err != nil {
			log.Debug("set deadline failed", "error", err)
			return
		}
		br := bufio.NewReader(conn)
		if peek, err := br.Peek(len(tlsClientHelloPrefix)); err == nil && bytes.Equal(peek, tlsClientHelloPrefix) {
			log.Error("TLS handshake attempted against plaintext listener; closing without reply")
			s.cfg.Metrics.ErrorObserved("transport")
			return
		}
		rw = bufReadWriter{Reader: br, Writer: conn}
	}

	sess := &session{
		rw:          rw,
		deadline:    dl,
		timeout:     s.cfg.SessionTimeout,
		store:       s.cfg.Store,
		checkClient: s.cfg.CheckClient,
		metrics:     s.cfg.Metrics,
		log:         log,
	}
	sess.run()
}
