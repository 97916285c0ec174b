package relaynet

import (
	log "github.com/nullchannel/relaynet/pkg/minilog"
	"github.com/nullchannel/relaynet/pkg/wire"
	"github.com/nullchannel/relaynet/transport"
)

// SendHandle is the two-phase send object from spec §4.6: BeginSend
// writes the metadata byte and key, runs the send pipeline, and hands
// the caller a handle whose Writer they fill with payload via the codec
// registry; Commit appends the length trailer and transmits.
type SendHandle struct {
	uid       uint64
	kind      transport.PipelineKind
	w         *wire.Writer
	committed bool
	aborted   bool
}

// Writer exposes the in-progress frame buffer for payload serialization.
func (h *SendHandle) Writer() *wire.Writer { return h.w }

// Sender prepares outgoing frames and drives the driver's writer
// lifecycle. It also tracks handles begun but not yet committed so the
// engine can sweep them at the top of the next tick (spec §4.6).
type Sender struct {
	driver  transport.Driver
	dir     *Directory
	send    *Pipeline // the send pipeline to run (role-specific)
	pending []*SendHandle
	disconnectQueue []uint64
}

func NewSender(driver transport.Driver, dir *Directory, send *Pipeline) *Sender {
	return &Sender{driver: driver, dir: dir, send: send}
}

// BeginSend implements spec §4.6 for a single recipient.
func (s *Sender) BeginSend(target uint64, key uint16, kind transport.PipelineKind, meta wire.Metadata) *SendHandle {
	w := wire.NewWriter()
	wire.WritePreamble(w, meta, key)

	params := &StepParams{UID: target, Meta: meta, Writer: w}
	switch s.send.Run(params) {
	case OutcomeDisconnect:
		s.disconnectQueue = append(s.disconnectQueue, target)
		return nil
	case OutcomeDiscard:
		return nil
	}

	h := &SendHandle{uid: target, kind: kind, w: w}
	s.pending = append(s.pending, h)
	return h
}

// Commit finalizes and transmits h. Returns false if h is nil, already
// handled, or transmission failed.
func (s *Sender) Commit(h *SendHandle) bool {
	if h == nil || h.committed || h.aborted {
		return false
	}
	h.committed = true
	s.removePending(h)

	conn, ok := s.dir.Conn(h.uid)
	if !ok || conn == nil {
		return false
	}

	frame := wire.Finalize(h.w)

	tw, err := s.driver.BeginSend(h.kind, conn)
	if err != nil {
		log.Error("relaynet: begin-send to uid %v failed: %v", h.uid, err)
		return false
	}
	if _, err := tw.Write(frame); err != nil {
		s.driver.AbortSend(tw)
		log.Error("relaynet: write to uid %v failed: %v", h.uid, err)
		return false
	}
	if err := s.driver.EndSend(tw); err != nil {
		log.Error("relaynet: end-send to uid %v failed: %v", h.uid, err)
		return false
	}
	return true
}

func (s *Sender) removePending(h *SendHandle) {
	for i, p := range s.pending {
		if p == h {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// DrainDisconnects returns and clears UIDs queued for disconnect by a
// DisconnectClient pipeline outcome.
func (s *Sender) DrainDisconnects() []uint64 {
	out := s.disconnectQueue
	s.disconnectQueue = nil
	return out
}

// SweepUnhandled aborts every begin-send handle not committed from the
// previous tick, preventing transport resource leaks (spec §4.6).
func (s *Sender) SweepUnhandled() {
	for _, h := range s.pending {
		h.aborted = true
	}
	s.pending = nil
}

// MultiHandle is the multicast/broadcast counterpart: one template
// buffer the caller fills with payload, applied to each recipient's own
// framed writer at commit time.
type MultiHandle struct {
	recipients []uint64
	key        uint16
	kind       transport.PipelineKind
	meta       wire.Metadata
	template   *wire.Writer
}

func (h *MultiHandle) Writer() *wire.Writer { return h.template }

// BeginMulticast returns a handle for explicit recipients.
func (s *Sender) BeginMulticast(recipients []uint64, key uint16, kind transport.PipelineKind, meta wire.Metadata) *MultiHandle {
	return &MultiHandle{
		recipients: append([]uint64(nil), recipients...),
		key:        key,
		kind:       kind,
		meta:       meta,
		template:   wire.NewWriter(),
	}
}

// BeginBroadcast returns a handle with no explicit recipients. Passing it
// to CommitMulticast with broadcast=true resolves recipients to every
// connection in the directory at commit time (spec §4.6) rather than
// snapshotting them now; the handle itself carries no broadcast mark.
func (s *Sender) BeginBroadcast(key uint16, kind transport.PipelineKind, meta wire.Metadata) *MultiHandle {
	return &MultiHandle{key: key, kind: kind, meta: meta, template: wire.NewWriter(), recipients: nil}
}

// CommitMulticast iterates recipients (or, when broadcast is true, the
// current connection set), running each recipient's own send pipeline
// and skipping any recipient that fails a step. Returns the count of
// successful sends.
func (s *Sender) CommitMulticast(h *MultiHandle, broadcast bool) int {
	recipients := h.recipients
	if broadcast {
		recipients = s.dir.UIDs()
	}

	payload := h.template.Bytes()

	sent := 0
	for _, uid := range recipients {
		conn, ok := s.dir.Conn(uid)
		if !ok || conn == nil {
			continue
		}

		w := wire.NewWriter()
		wire.WritePreamble(w, h.meta, h.key)

		params := &StepParams{UID: uid, Meta: h.meta, Writer: w}
		switch s.send.Run(params) {
		case OutcomeDisconnect:
			s.disconnectQueue = append(s.disconnectQueue, uid)
			continue
		case OutcomeDiscard:
			continue
		}

		w.Write(payload)
		frame := wire.Finalize(w)

		tw, err := s.driver.BeginSend(h.kind, conn)
		if err != nil {
			continue
		}
		if _, err := tw.Write(frame); err != nil {
			s.driver.AbortSend(tw)
			continue
		}
		if err := s.driver.EndSend(tw); err != nil {
			continue
		}
		sent++
	}
	return sent
}
