// Package relaynet implements the message engine: connection directory,
// pipelines, dispatcher, receiver, sender, and the tick loop that drives
// them, grounded on the accept/reap/dispatch shape of minimega's ron
// server (internal/ron/server.go).
package relaynet

import (
	"sync"

	"github.com/nullchannel/relaynet/transport"
)

// SelfUID is reserved for the client-side "self" connection record; it is
// never issued to a remote connection.
const SelfUID uint64 = 0

// Flags is the 16-bit per-connection permission bitmask. All operations
// are safe under the directory's single coarse lock; callers never hold a
// *Flags directly across a directory boundary.
type Flags uint16

func (f Flags) Meets(required Flags) bool { return f&required == required }

func (f Flags) Test(bit int) bool { return f&(1<<uint(bit)) != 0 }

func (f Flags) Set(bit int) Flags   { return f | (1 << uint(bit)) }
func (f Flags) Clear(bit int) Flags { return f &^ (1 << uint(bit)) }

// record is the connection directory's entry: permission flags plus the
// transport-level handle (nil for the client's own "self" record).
type record struct {
	uid   uint64
	flags Flags
	conn  transport.Conn
}

// Directory is the thread-safe UID -> record map described in spec §4.2.
// A coarse RWMutex is sufficient: writes only ever happen on the tick
// thread, while user callbacks on any goroutine may read concurrently.
type Directory struct {
	mu      sync.RWMutex
	records map[uint64]*record
}

func NewDirectory() *Directory {
	return &Directory{records: make(map[uint64]*record)}
}

// Register adds uid with the given initial flags and transport handle.
// Returns false if uid is already present.
func (d *Directory) Register(uid uint64, initial Flags, conn transport.Conn) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.records[uid]; ok {
		return false
	}
	d.records[uid] = &record{uid: uid, flags: initial, conn: conn}
	return true
}

// Remove deletes uid from the directory. Returns false if it wasn't present.
func (d *Directory) Remove(uid uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.records[uid]; !ok {
		return false
	}
	delete(d.records, uid)
	return true
}

// Flags returns the current permission flags for uid.
func (d *Directory) Flags(uid uint64) (Flags, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.records[uid]
	if !ok {
		return 0, false
	}
	return r.flags, true
}

// Meets reports whether uid's current flags satisfy required.
func (d *Directory) Meets(uid uint64, required Flags) bool {
	f, ok := d.Flags(uid)
	return ok && f.Meets(required)
}

// SetBit sets bit i of uid's permission flags. Returns false if uid is
// not in the directory.
func (d *Directory) SetBit(uid uint64, bit int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.records[uid]
	if !ok {
		return false
	}
	r.flags = r.flags.Set(bit)
	return true
}

// ClearBit clears bit i of uid's permission flags.
func (d *Directory) ClearBit(uid uint64, bit int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.records[uid]
	if !ok {
		return false
	}
	r.flags = r.flags.Clear(bit)
	return true
}

// Conn returns the transport handle for uid.
func (d *Directory) Conn(uid uint64) (transport.Conn, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.records[uid]
	if !ok {
		return nil, false
	}
	return r.conn, true
}

// UIDs returns a snapshot of all currently registered connection UIDs, in
// no particular order; used by broadcast to enumerate recipients.
func (d *Directory) UIDs() []uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]uint64, 0, len(d.records))
	for uid := range d.records {
		out = append(out, uid)
	}
	return out
}

// Len returns the number of connections currently registered.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}
