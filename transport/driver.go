// Package transport defines the driver contract the engine drives each
// tick. A driver is treated as opaque: connect/accept, named send
// pipelines, and an event queue per connection. Concrete drivers
// (transport/udpdriver, transport/wsdriver) are reference implementations;
// nothing in the engine depends on their internals.
package transport

import "context"

// PipelineKind selects one of the four named send pipelines a driver must
// expose. Identity is exposed as an enum so send calls can pick a pipeline
// without naming a driver-specific type.
type PipelineKind int

const (
	Unreliable PipelineKind = iota
	Reliable
	UnreliableSequenced
	Fragmented
)

// Conn is an opaque per-connection handle owned by a driver.
type Conn interface {
	// RemoteAddr is used only for logging/diagnostics.
	RemoteAddr() string
}

// EventKind distinguishes the four shapes of driver event.
type EventKind int

const (
	EventEmpty EventKind = iota
	EventConnect
	EventData
	EventDisconnect
)

// Event is popped from a connection's queue; each tick the engine pops a
// connection's events until it gets EventEmpty.
type Event struct {
	Kind EventKind
	Data []byte // valid when Kind == EventData
}

// Writer is an in-progress outgoing buffer returned by BeginSend; the
// caller writes the complete, finalized frame bytes to it and finishes
// with either EndSend or AbortSend.
type Writer interface {
	Write(p []byte) (int, error)
}

// Driver is the transport contract the engine tick loop drives. All
// methods are called from the tick thread only; a driver implementation
// must not block.
type Driver interface {
	// Connect dials a server endpoint (client role).
	Connect(ctx context.Context, endpoint string) (Conn, error)
	// Accept returns a newly-arrived connection, or nil if none is
	// pending this tick (server role).
	Accept() (Conn, error)
	// BeginSend acquires a writer for the given pipeline and connection.
	BeginSend(kind PipelineKind, c Conn) (Writer, error)
	// AbortSend releases a writer without transmitting it.
	AbortSend(w Writer)
	// EndSend transmits and releases the writer.
	EndSend(w Writer) error
	// PopEvent dequeues the next event for c, or EventEmpty if none.
	PopEvent(c Conn) (Event, error)
	// Disconnect closes c from the driver's side.
	Disconnect(c Conn)
	// ScheduleUpdate drives one I/O cycle (reading sockets, flushing
	// sends, etc.) for all connections owned by this driver.
	ScheduleUpdate() error
	// Close releases all driver resources.
	Close() error
}
