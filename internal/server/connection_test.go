package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/synacktiv/lumina-server/internal/store"
)

// TestPlaintextListenerClosesOnTLSClientHello exercises the full
// handleConnection path: a client that opens with spec.md §8 scenario
// 6's literal guard bytes (16 03 01) against a plaintext-configured
// Server must be disconnected without any reply.
func TestPlaintextListenerClosesOnTLSClientHello(t *testing.T) {
	require.Equal(t, []byte{0x16, 0x03, 0x01}, tlsClientHelloPrefix)

	st, err := store.Open(t.TempDir() + "/db.json")
	require.NoError(t, err)
	defer st.Close(false)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := New(Config{Addr: ln.Addr().String(), Store: st, SessionTimeout: time.Second})

	accepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		srv.handleConnection(conn)
		close(accepted)
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte{0x16, 0x03, 0x01, 0x00, 0x00})
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	n, readErr := client.Read(buf)
	require.Error(t, readErr, "server must close without replying")
	require.Equal(t, 0, n)

	<-accepted
}
