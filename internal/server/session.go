package server

import (
	"io"
	"log/slog"
	"time"

	"github.com/synacktiv/lumina-server/internal/metrics"
	"github.com/synacktiv/lumina-server/internal/store"
	"github.com/synacktiv/lumina-server/internal/wire"
)

// deadliner is satisfied by both a net.Conn and a *tls.Conn, whichever
// transport a session runs over.
type deadliner interface {
	SetDeadline(time.Time) error
}

// session runs the state machine of spec.md §4.4 against one
// connection: AWAIT_HELO, then exactly one command, then close.
// Sequential and single-threaded — there is no pipelining within a
// session.
type session struct {
	rw          io.ReadWriter
	deadline    deadliner
	timeout     time.Duration
	store       *store.Store
	checkClient CheckClientFunc
	metrics     *metrics.Metrics
	log         *slog.Logger
}

func (s *session) run() {
	pkt, ok := s.recv("awaiting helo")
	if !ok {
		return
	}

	if pkt.Opcode != wire.OpRPCHelo {
		s.reply(wire.NotifyMessage{Message: "Expected helo"})
		return
	}

	msg, err := pkt.Decode()
	if err != nil {
		s.log.Debug("malformed helo", "error", err)
		s.metrics.ErrorObserved("protocol")
		s.reply(wire.NotifyMessage{Message: "Expected helo"})
		return
	}
	helo := msg.(wire.HeloMessage)

	if helo.Protocol != wire.ProtocolVersion {
		// Reference leniency: non-default protocol numbers are not rejected.
		s.log.Debug("client offered non-default protocol version", "protocol", helo.Protocol)
	}

	if !s.checkClient(helo) {
		s.reply(wire.NotifyMessage{Message: "Invalid license"})
		return
	}
	if !s.replyOK(wire.OkMessage{}) {
		return
	}

	pkt, ok = s.recv("awaiting command")
	if !ok {
		return
	}

	switch pkt.Opcode {
	case wire.OpPushMD:
		s.handlePushMD(pkt)
	case wire.OpPullMD:
		s.handlePullMD(pkt)
	default:
		s.log.Debug("unknown command", "opcode", pkt.Opcode.String())
		s.reply(wire.NotifyMessage{Message: "Unknown command"})
	}
}

func (s *session) handlePushMD(pkt wire.Packet) {
	msg, err := pkt.Decode()
	if err != nil {
		s.log.Debug("malformed push_md", "error", err)
		s.metrics.ErrorObserved("protocol")
		s.reply(wire.NotifyMessage{Message: "Unknown command"})
		return
	}
	push := msg.(wire.PushMDMessage)

	flags := make([]uint32, len(push.FuncInfos))
	for i, fm := range push.FuncInfos {
		newSig := s.store.Push(fm)
		s.metrics.PushObserved(newSig)
		if newSig {
			flags[i] = 1
		}
	}
	s.log.Debug("push_md handled", "count", len(push.FuncInfos))
	s.reply(wire.PushMDResultMessage{ResultsFlags: flags})
}

func (s *session) handlePullMD(pkt wire.Packet) {
	msg, err := pkt.Decode()
	if err != nil {
		s.log.Debug("malformed pull_md", "error", err)
		s.metrics.ErrorObserved("protocol")
		s.reply(wire.NotifyMessage{Message: "Unknown command"})
		return
	}
	pull := msg.(wire.PullMDMessage)

	found := make([]uint32, 0, len(pull.FuncInfos))
	results := make([]wire.FuncInfo, 0, len(pull.FuncInfos))
	for _, sig := range pull.FuncInfos {
		info, ok := s.store.Pull(sig)
		s.metrics.PullObserved(ok)
		if ok {
			found = append(found, 1)
			results = append(results, info)
		} else {
			found = append(found, 0)
		}
	}
	s.log.Debug("pull_md handled", "requested", len(pull.FuncInfos), "hits", len(results))
	s.reply(wire.PullMDResultMessage{Found: found, Results: results})
}

// recv applies the session's read deadline and reads one packet.
func (s *session) recv(step string) (wire.Packet, bool) {
	if err := s.setDeadline(); err != nil {
		return wire.Packet{}, false
	}
	pkt, err := wire.ReadPacket(s.rw)
	if err != nil {
		s.log.Debug("read failed", "step", step, "error", err)
		s.metrics.ErrorObserved("protocol")
		return wire.Packet{}, false
	}
	return pkt, true
}

// reply builds and writes msg, logging and counting any failure. The
// return value mirrors whether the caller may still expect the
// connection to be usable.
func (s *session) reply(msg wire.Message) bool {
	framed, err := wire.Build(msg)
	if err != nil {
		s.log.Error("build outgoing message failed", "error", err)
		s.metrics.ErrorObserved("protocol")
		return false
	}
	if err := s.setDeadline(); err != nil {
		return false
	}
	if _, err := s.rw.Write(framed); err != nil {
		s.log.Debug("write failed", "error", err)
		s.metrics.ErrorObserved("transport")
		return false
	}
	return true
}

// replyOK is reply, named for the one call site where the session
// must continue only if the write succeeded.
func (s *session) replyOK(msg wire.Message) bool {
	return s.reply(msg)
}

func (s *session) setDeadline() error {
	if err := s.deadline.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		s.log.Debug("set deadline failed", "error", err)
		s.metrics.ErrorObserved("transport")
		return err
	}
	return nil
}
