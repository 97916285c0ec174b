package relaynet

import (
	"sync/atomic"

	"github.com/pkg/errors"

	log "github.com/nullchannel/relaynet/pkg/minilog"
	"github.com/nullchannel/relaynet/transport"
)

// Role distinguishes the server side (accepts many connections, issues
// UIDs) from the client side (dials one connection, addresses itself as
// SelfUID).
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// Options configures an Engine at construction time; see config.Options
// for how these are typically sourced (viper-backed) before being
// translated here.
type Options struct {
	Role       Role
	MaxPlayers int // server only; must be > 0
}

// Engine owns the transport driver, the connection directory, the UID
// allocator, the dispatcher and pipelines, and runs exactly one tick at a
// time (spec §4.7/§5). Multiple Engine instances can coexist in a process
// with no shared mutable state between them.
type Engine struct {
	role    Role
	driver  transport.Driver
	dir     *Directory
	pipes   *Pipelines
	dispatcher *Dispatcher
	sender  *Sender
	receive *Receiver
	expirations *Expirations

	maxPlayers int
	nextUID    uint64 // atomic, server only, starts issuing at 1

	connOrder   []uint64
	connByConn  map[transport.Conn]uint64

	OnClientConnected    EventHub
	OnClientDisconnected EventHub
	OnConnect            EventHub
	OnDisconnect         EventHub

	ticking uint32 // atomic guard: at most one concurrent tick
	stopped bool

	ring *log.Ring // optional, set by WithDiagnosticRing
}

// NewEngine wires a fresh Engine. The dispatcher's Side is derived from
// opts.Role; handler registration does not filter by it.
func NewEngine(driver transport.Driver, opts Options) (*Engine, error) {
	if opts.Role == RoleServer && opts.MaxPlayers <= 0 {
		return nil, errors.New("relaynet: max_players must be > 0 for a server engine")
	}

	dir := NewDirectory()
	pipes := NewPipelines()

	side := SideClient
	if opts.Role == RoleServer {
		side = SideServer
	}
	dispatcher := NewDispatcher(side, dir)

	var recv *Pipeline
	var send *Pipeline
	if opts.Role == RoleServer {
		recv = pipes.ClientToServerReceive
		send = pipes.ServerToClientSend
	} else {
		recv = pipes.ServerToClientReceive
		send = pipes.ClientToServerSend
	}

	e := &Engine{
		role:        opts.Role,
		driver:      driver,
		dir:         dir,
		pipes:       pipes,
		dispatcher:  dispatcher,
		sender:      NewSender(driver, dir, send),
		receive:     NewReceiver(recv, dispatcher),
		expirations: NewExpirations(),
		maxPlayers:  opts.MaxPlayers,
		nextUID:     1,
		connByConn:  make(map[transport.Conn]uint64),
	}
	return e, nil
}

func (e *Engine) Dispatcher() *Dispatcher { return e.dispatcher }
func (e *Engine) Directory() *Directory   { return e.dir }
func (e *Engine) Sender() *Sender         { return e.sender }
func (e *Engine) Pipelines() *Pipelines   { return e.pipes }

// WithDiagnosticRing attaches an in-memory ring buffer of the last n log
// lines to this engine, letting an embedding host dump recent log
// activity for a crash report without standing up a file sink. Matches
// how pkg/minilog.Ring is used elsewhere in the teacher's tree.
func (e *Engine) WithDiagnosticRing(n int) *Engine {
	e.ring = log.NewRing(n)
	log.AddRingLogger(e.ringLoggerName(), e.ring, log.DEBUG)
	return e
}

// DiagnosticDump returns the ring buffer's contents, oldest first, or nil
// if WithDiagnosticRing was never called.
func (e *Engine) DiagnosticDump() []string {
	if e.ring == nil {
		return nil
	}
	return e.ring.Dump()
}

func (e *Engine) ringLoggerName() string {
	return "relaynet-diagnostic-ring-" + e.role.String()
}

// Stop releases the driver and all engine-owned resources.
func (e *Engine) Stop() error {
	e.stopped = true
	if e.ring != nil {
		log.DelLogger(e.ringLoggerName())
	}
	return e.driver.Close()
}

// Tick runs exactly once per host-scheduler invocation (spec §4.7). It
// refuses to run re-entrantly: at most one concurrent tick per engine.
func (e *Engine) Tick() error {
	if !atomic.CompareAndSwapUint32(&e.ticking, 0, 1) {
		return errors.New("relaynet: tick already in progress")
	}
	defer atomic.StoreUint32(&e.ticking, 0)

	// 1. abort/clear uncommitted send handles from the previous tick.
	e.sender.SweepUnhandled()

	// 2. drive the transport driver to completion for this tick.
	if err := e.driver.ScheduleUpdate(); err != nil {
		return errors.Wrap(err, "relaynet: driver update")
	}

	if e.role == RoleServer {
		// 4. accept new connections while count < max.
		e.acceptNew()
	}

	// 5. drain events per connection.
	e.drainEvents()

	// honor any disconnects queued by send pipelines this tick.
	for _, uid := range e.sender.DrainDisconnects() {
		e.disconnect(uid)
	}

	// 6. periodic expiration sweep happens inside go-cache's own janitor
	// goroutine (see expire.go); nothing to do here.

	return nil
}

func (e *Engine) acceptNew() {
	for {
		conn, err := e.driver.Accept()
		if err != nil {
			log.Error("relaynet: accept error: %v", err)
			return
		}
		if conn == nil {
			return
		}

		// Capacity is checked after accepting, not before: the driver
		// must still drain the connection off its pending queue so it
		// can be disconnected outright (spec §4.7 step 4 / §8 scenario
		// 6), rather than left to accumulate for a future tick.
		if e.dir.Len() >= e.maxPlayers {
			log.Warn("relaynet: rejecting connection from %v: at capacity (%v)", conn.RemoteAddr(), e.maxPlayers)
			e.driver.Disconnect(conn)
			continue
		}

		uid := atomic.AddUint64(&e.nextUID, 1) - 1
		e.dir.Register(uid, 0, conn)
		e.connOrder = append(e.connOrder, uid)
		e.connByConn[conn] = uid

		e.OnClientConnected.Emit(uid)
		log.Info("relaynet: accepted uid %v from %v", uid, conn.RemoteAddr())
	}
}

func (e *Engine) drainEvents() {
connLoop:
	for _, uid := range append([]uint64(nil), e.connOrder...) {
		conn, ok := e.dir.Conn(uid)
		if !ok {
			continue
		}

		for {
			ev, err := e.driver.PopEvent(conn)
			if err != nil {
				log.Error("relaynet: pop-event for uid %v: %v", uid, err)
				continue connLoop
			}

			switch ev.Kind {
			case transport.EventEmpty:
				continue connLoop

			case transport.EventConnect:
				if e.role == RoleClient {
					e.dir.Register(SelfUID, 0, nil)
					e.OnConnect.Emit(SelfUID)
				}

			case transport.EventData:
				if e.receive.Receive(uid, ev.Data) == Disconnect {
					e.disconnect(uid)
					continue connLoop
				}

			case transport.EventDisconnect:
				e.disconnect(uid)
				continue connLoop
			}
		}
	}
}

// disconnect runs the dispatcher's disconnect hooks (if uid is still in
// the directory), removes uid from the live directory, quarantines its UID
// in the expiration tracker, and emits the appropriate disconnected event.
func (e *Engine) disconnect(uid uint64) {
	conn, ok := e.dir.Conn(uid)
	if ok {
		e.dispatcher.fireDisconnect(uid)
	}
	if ok && conn != nil {
		e.driver.Disconnect(conn)
		delete(e.connByConn, conn)
	}
	e.dir.Remove(uid)
	e.expirations.Track(uid)

	for i, v := range e.connOrder {
		if v == uid {
			e.connOrder = append(e.connOrder[:i], e.connOrder[i+1:]...)
			break
		}
	}

	if e.role == RoleServer {
		e.OnClientDisconnected.Emit(uid)
	} else {
		e.OnDisconnect.Emit(uid)
	}
}

// String is used only for log lines that want a human label for the role.
func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}
