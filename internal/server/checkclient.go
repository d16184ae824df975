package server

import "github.com/synacktiv/lumina-server/internal/wire"

// CheckClientFunc is the pluggable license predicate evaluated against
// the client's RPC_HELO. The default, AcceptAll, accepts unconditionally;
// production deployments inject their own.
type CheckClientFunc func(helo wire.HeloMessage) bool

// AcceptAll is the default CheckClientFunc: it accepts every client,
// matching the reference server's own check_client placeholder.
func AcceptAll(wire.HeloMessage) bool {
	return true
}
