package relaynet

import (
	log "github.com/nullchannel/relaynet/pkg/minilog"
	"github.com/nullchannel/relaynet/pkg/wire"
)

// ReceiveOutcome is what the frame decoder (spec §4.3) hands back to the
// tick loop.
type ReceiveOutcome int

const (
	KeepAlive ReceiveOutcome = iota
	Disconnect
)

// Receiver decodes one incoming frame and routes it through the
// appropriate pipeline and dispatcher sub-path. One Receiver instance is
// bound to a single direction (client->server or server->client); the
// engine constructs one, bound to the receive pipeline for its role.
type Receiver struct {
	Pipeline   *Pipeline
	Dispatcher *Dispatcher
}

func NewReceiver(p *Pipeline, d *Dispatcher) *Receiver {
	return &Receiver{Pipeline: p, Dispatcher: d}
}

// Receive implements spec §4.3's algorithm exactly.
func (rc *Receiver) Receive(uid uint64, frame []byte) ReceiveOutcome {
	r := wire.NewReader(frame)

	if r.Remaining() < 3 {
		return KeepAlive
	}

	metaByte, ok := r.ReadByte()
	if !ok {
		return KeepAlive
	}
	meta := wire.Metadata(metaByte)

	key, ok := r.ReadUint16()
	if !ok {
		return KeepAlive
	}

	// The last 4 bytes of frame are the total-length trailer written at
	// finalize time (spec §3/§6); validate it against the actual frame
	// size and bound every payload read to the region between the
	// preamble and the trailer, so control-length checks and reflective
	// reads measure payload only, never the trailer itself.
	if len(frame) < wire.MinFrameSize {
		log.Info("relaynet: frame from uid %v shorter than minimum frame size", uid)
		return KeepAlive
	}
	trailer := wire.NewReader(frame[len(frame)-wire.TrailerSize:])
	total, ok := trailer.ReadUint32()
	if !ok || int(total) != len(frame) {
		log.Info("relaynet: frame length mismatch from uid %v (trailer says %v, got %v bytes)", uid, total, len(frame))
		return KeepAlive
	}
	payload := wire.NewReader(frame[wire.PreambleSize : len(frame)-wire.TrailerSize])

	switch meta.Type() {
	case wire.Default:
		params := &StepParams{UID: uid, Meta: meta, Reader: payload}
		switch rc.Pipeline.Run(params) {
		case OutcomeContinue:
			rc.Dispatcher.DispatchDefault(uid, key, meta, payload)
			return KeepAlive
		case OutcomeDiscard:
			return KeepAlive
		case OutcomeDisconnect:
			return Disconnect
		}
		return KeepAlive

	case wire.Event:
		if len(frame) != wire.MinFrameSize {
			log.Info("relaynet: event frame from uid %v has unexpected size %v", uid, len(frame))
			return KeepAlive
		}
		rc.Dispatcher.DispatchEvent(uid, key, meta)
		return KeepAlive

	case wire.Control:
		if key >= 16 {
			log.Info("relaynet: control key %v out of range from uid %v", key, uid)
			return KeepAlive
		}
		rc.Dispatcher.DispatchControl(uid, key, meta, payload)
		return KeepAlive

	default:
		// VarTracking or reserved: no-op, forward-compatible (spec §4.3).
		return KeepAlive
	}
}
