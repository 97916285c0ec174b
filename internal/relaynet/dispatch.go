package relaynet

import (
	log "github.com/nullchannel/relaynet/pkg/minilog"
	"github.com/nullchannel/relaynet/pkg/wire"
)

// Side tags a dispatcher with the role it runs on. sideMatches implements
// the side filter: match iff (handler.side & dispatcher.side) != 0 when
// either side is Any, else iff handler.side is a superset of
// dispatcher.side. No Register* function in this package takes a side or
// calls sideMatches; the dispatcher stores its side and nothing reads it.
type Side byte

const (
	SideNone   Side = 0
	SideClient Side = 1 << 0
	SideServer Side = 1 << 1
	SideCommon      = SideClient | SideServer
	SideAny    Side = 0xFF
)

func sideMatches(handlerSide, dispatcherSide Side) bool {
	if handlerSide == SideAny || dispatcherSide == SideAny {
		return handlerSide&dispatcherSide != 0
	}
	return handlerSide&dispatcherSide == dispatcherSide
}

// DefaultFunc handles a Default-type message with its remaining payload
// still in the reader.
type DefaultFunc func(uid uint64, meta wire.Metadata, r *wire.Reader)

// EventFunc handles an Event-type message; events never carry a payload.
type EventFunc func(uid uint64, meta wire.Metadata)

// ControlFunc handles a Control-type message and reports whether the
// permission bit for its key should be set.
type ControlFunc func(uid uint64, meta wire.Metadata, r *wire.Reader) bool

type defaultHandler struct {
	fn       DefaultFunc
	required Flags
}

type eventHandler struct {
	fn       EventFunc
	required Flags
}

type controlHandler struct {
	fn             ControlFunc
	required       Flags
	expectedLength int
}

// Dispatcher holds the four handler registries described in spec §4.5.
// Default-data and event handlers are ordered multicast lists per key;
// control handlers are a fixed 16-slot array (one slot accumulates its
// own ordered list, matching "combined as an ordered multicast list").
type Dispatcher struct {
	side Side

	defaults map[uint16][]*defaultHandler
	events   map[uint16][]*eventHandler
	controls [16][]*controlHandler

	onDisconnect []func(uid uint64)

	dir *Directory
}

func NewDispatcher(side Side, dir *Directory) *Dispatcher {
	return &Dispatcher{
		side:     side,
		defaults: make(map[uint16][]*defaultHandler),
		events:   make(map[uint16][]*eventHandler),
		dir:      dir,
	}
}

// RegisterDefault adds fn as a default-data handler for key, combining
// with any already registered (ordered multicast list, spec §3).
func (d *Dispatcher) RegisterDefault(key uint16, required Flags, fn DefaultFunc) {
	d.defaults[key] = append(d.defaults[key], &defaultHandler{fn: fn, required: required})
}

// UnregisterDefault removes the most recently added handler for key.
// Idempotent: calling on an empty key is a no-op.
func (d *Dispatcher) UnregisterDefault(key uint16) {
	if l := d.defaults[key]; len(l) > 0 {
		d.defaults[key] = l[:len(l)-1]
		if len(d.defaults[key]) == 0 {
			delete(d.defaults, key)
		}
	}
}

func (d *Dispatcher) RegisterEvent(key uint16, required Flags, fn EventFunc) {
	d.events[key] = append(d.events[key], &eventHandler{fn: fn, required: required})
}

func (d *Dispatcher) UnregisterEvent(key uint16) {
	if l := d.events[key]; len(l) > 0 {
		d.events[key] = l[:len(l)-1]
		if len(d.events[key]) == 0 {
			delete(d.events, key)
		}
	}
}

// RegisterControl adds fn as a control handler for the 4-bit key,
// expecting a payload of exactly expectedLength bytes.
func (d *Dispatcher) RegisterControl(key uint16, required Flags, expectedLength int, fn ControlFunc) {
	if key >= 16 {
		log.Error("relaynet: control key %v out of range [0,15], registration rejected", key)
		return
	}
	d.controls[key] = append(d.controls[key], &controlHandler{fn: fn, required: required, expectedLength: expectedLength})
}

func (d *Dispatcher) UnregisterControl(key uint16) {
	if key >= 16 {
		return
	}
	if l := d.controls[key]; len(l) > 0 {
		d.controls[key] = l[:len(l)-1]
	}
}

// OnDisconnect registers the optional hook spec.md §9 calls for: called
// once per disconnect, before the connection record is removed.
func (d *Dispatcher) OnDisconnect(fn func(uid uint64)) {
	d.onDisconnect = append(d.onDisconnect, fn)
}

func (d *Dispatcher) fireDisconnect(uid uint64) {
	for _, fn := range d.onDisconnect {
		safeCall(func() { fn(uid) })
	}
}

// DispatchDefault runs the common pre-checks (spec §4.5) and invokes
// every registered default-data handler for key in registration order.
func (d *Dispatcher) DispatchDefault(uid uint64, key uint16, meta wire.Metadata, r *wire.Reader) {
	handlers, ok := d.defaults[key]
	if !ok || len(handlers) == 0 {
		log.Info("relaynet: invalid default key %v from uid %v", key, uid)
		return
	}

	flags, ok := d.dir.Flags(uid)
	if !ok {
		log.Info("relaynet: default dispatch for unknown uid %v", uid)
		return
	}

	for _, h := range handlers {
		if !flags.Meets(h.required) {
			log.Info("relaynet: uid %v denied default key %v (flags %016b need %016b)", uid, key, flags, h.required)
			continue
		}
		safeCall(func() { h.fn(uid, meta, r) })
	}
}

func (d *Dispatcher) DispatchEvent(uid uint64, key uint16, meta wire.Metadata) {
	handlers, ok := d.events[key]
	if !ok || len(handlers) == 0 {
		log.Info("relaynet: invalid event key %v from uid %v", key, uid)
		return
	}

	flags, ok := d.dir.Flags(uid)
	if !ok {
		log.Info("relaynet: event dispatch for unknown uid %v", uid)
		return
	}

	for _, h := range handlers {
		if !flags.Meets(h.required) {
			log.Info("relaynet: uid %v denied event key %v", uid, key)
			continue
		}
		safeCall(func() { h.fn(uid, meta) })
	}
}

// DispatchControl runs the control pre-checks, including the
// expected-payload-length gate, and sets permission bit `key` on any
// handler invocation that returns true -- the only permission mutation
// path driven by incoming traffic (spec §4.5/invariants).
func (d *Dispatcher) DispatchControl(uid uint64, key uint16, meta wire.Metadata, r *wire.Reader) {
	if key >= 16 {
		log.Info("relaynet: control key %v out of range from uid %v", key, uid)
		return
	}

	handlers := d.controls[key]
	if len(handlers) == 0 {
		log.Info("relaynet: invalid control key %v from uid %v", key, uid)
		return
	}

	flags, ok := d.dir.Flags(uid)
	if !ok {
		log.Info("relaynet: control dispatch for unknown uid %v", uid)
		return
	}

	// All handlers for key share r: if one reads bytes from the payload,
	// a later handler's expected-length check and any of its own reads
	// see what's left, not the original payload. Harmless for the
	// common case of one handler per control key; a multi-callable
	// control key whose handlers each expect to read the full payload
	// needs its own reader per callable, which would require buffering
	// the payload up front.
	for _, h := range handlers {
		if !flags.Meets(h.required) {
			log.Info("relaynet: uid %v denied control key %v", uid, key)
			continue
		}
		if r.Remaining() != h.expectedLength {
			log.Info("relaynet: control key %v payload length mismatch from uid %v (want %v got %v)", key, uid, h.expectedLength, r.Remaining())
			continue
		}

		var granted bool
		safeCall(func() { granted = h.fn(uid, meta, r) })
		if granted {
			d.dir.SetBit(uid, int(key))
		}
	}
}

// safeCall catches a panicking handler at the dispatcher boundary so one
// misbehaving callback never aborts the tick (spec §7 propagation policy).
func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("relaynet: handler panic recovered: %v", r)
		}
	}()
	fn()
}
