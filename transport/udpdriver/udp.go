// Package udpdriver is a reference transport.Driver over UDP. The raw
// socket carries Unreliable and UnreliableSequenced frames directly (a
// connection is identified by remote address, the common pattern seen
// across the pack's UDP client/server examples); Reliable and Fragmented
// frames ride a per-connection github.com/xtaci/kcp-go/v5 session, which
// gives real ARQ retransmission and packet fragmentation over UDP rather
// than a hand-rolled one.
package udpdriver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	kcp "github.com/xtaci/kcp-go/v5"

	log "github.com/nullchannel/relaynet/pkg/minilog"
	"github.com/nullchannel/relaynet/transport"
)

// pollDeadline bounds each ReadFromUDP call inside ScheduleUpdate: the
// loop reads whatever is already queued on the socket and returns on the
// first read that times out, so once the socket is empty each
// ScheduleUpdate waits up to this long.
const pollDeadline = time.Millisecond

func deadlineNow() time.Time {
	return time.Now().Add(pollDeadline)
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// Conn is the opaque connection handle this driver hands to the engine.
type Conn struct {
	remote *net.UDPAddr
	key    string

	mu  sync.Mutex
	kcp *kcp.UDPSession // established lazily on first Reliable/Fragmented send
}

func (c *Conn) RemoteAddr() string { return c.remote.String() }

// Driver implements transport.Driver for both server (Accept) and client
// (Connect) roles; which role a given instance plays is determined by
// which method is called first.
type Driver struct {
	mu sync.Mutex

	pc        *net.UDPConn
	kcpListen *kcp.Listener // server only, lazily bound on first reliable accept need

	conns       map[string]*Conn
	pendingNew  []*Conn
	queues      map[string][]transport.Event

	kcpDataShards, kcpParityShards int

	closed bool
}

// New binds a raw UDP socket on addr (e.g. ":7777"). Reliable sessions
// are dialed with zero data and parity shards, which disables KCP
// forward-error-correction and relies on ARQ retransmission alone.
func New(addr string) (*Driver, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udpdriver: resolve %v: %w", addr, err)
	}
	pc, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("udpdriver: listen %v: %w", addr, err)
	}

	return &Driver{
		pc:     pc,
		conns:  make(map[string]*Conn),
		queues: make(map[string][]transport.Event),
	}, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.kcpListen != nil {
		d.kcpListen.Close()
	}
	for _, c := range d.conns {
		c.mu.Lock()
		if c.kcp != nil {
			c.kcp.Close()
		}
		c.mu.Unlock()
	}
	return d.pc.Close()
}

// Connect dials a server over the raw socket (client role). The logical
// connection is considered established immediately; the engine will see
// an EventConnect on the next PopEvent call.
func (d *Driver) Connect(ctx context.Context, endpoint string) (transport.Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("udpdriver: resolve endpoint %v: %w", endpoint, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	c := &Conn{remote: raddr, key: raddr.String()}
	d.conns[c.key] = c
	d.queues[c.key] = append(d.queues[c.key], transport.Event{Kind: transport.EventConnect})
	return c, nil
}

// Accept returns nil if no new remote address has sent a datagram since
// the last call; ScheduleUpdate is what actually reads the socket and
// discovers new remotes.
func (d *Driver) Accept() (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pendingNew) == 0 {
		return nil, nil
	}
	c := d.pendingNew[0]
	d.pendingNew = d.pendingNew[1:]
	return c, nil
}

// ScheduleUpdate drains whatever datagrams are currently queued on the
// socket without blocking, classifying each by remote address into an
// existing connection's event queue or a newly-discovered one.
func (d *Driver) ScheduleUpdate() error {
	buf := make([]byte, 65536)

	for {
		if err := d.pc.SetReadDeadline(deadlineNow()); err != nil {
			return err
		}

		n, raddr, err := d.pc.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				return nil
			}
			return err
		}

		d.mu.Lock()
		key := raddr.String()
		c, ok := d.conns[key]
		if !ok {
			c = &Conn{remote: raddr, key: key}
			d.conns[key] = c
			d.pendingNew = append(d.pendingNew, c)
			d.queues[key] = append(d.queues[key], transport.Event{Kind: transport.EventConnect})
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		d.queues[key] = append(d.queues[key], transport.Event{Kind: transport.EventData, Data: data})
		d.mu.Unlock()
	}
}

func (d *Driver) PopEvent(conn transport.Conn) (transport.Event, error) {
	c, ok := conn.(*Conn)
	if !ok {
		return transport.Event{}, fmt.Errorf("udpdriver: PopEvent on foreign conn type")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[c.key]
	if len(q) == 0 {
		return transport.Event{Kind: transport.EventEmpty}, nil
	}
	ev := q[0]
	d.queues[c.key] = q[1:]
	return ev, nil
}

func (d *Driver) Disconnect(conn transport.Conn) {
	c, ok := conn.(*Conn)
	if !ok {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	c.mu.Lock()
	if c.kcp != nil {
		c.kcp.Close()
	}
	c.mu.Unlock()

	delete(d.conns, c.key)
	delete(d.queues, c.key)
	log.Debug("udpdriver: disconnected %v", c.key)
}

// BeginSend returns a Writer targeting either the raw socket (Unreliable,
// UnreliableSequenced) or the connection's KCP session (Reliable,
// Fragmented), dialing the session lazily on first use.
func (d *Driver) BeginSend(kind transport.PipelineKind, conn transport.Conn) (transport.Writer, error) {
	c, ok := conn.(*Conn)
	if !ok {
		return nil, fmt.Errorf("udpdriver: BeginSend on foreign conn type")
	}

	switch kind {
	case transport.Reliable, transport.Fragmented:
		sess, err := d.reliableSession(c)
		if err != nil {
			return nil, err
		}
		return &kcpWriter{sess: sess}, nil
	default:
		return &udpWriter{pc: d.pc, raddr: c.remote}, nil
	}
}

func (d *Driver) AbortSend(w transport.Writer) {
	// Both writer kinds buffer in memory until EndSend; aborting is just
	// dropping the reference, nothing to release on the socket.
	_ = w
}

func (d *Driver) EndSend(w transport.Writer) error {
	switch ww := w.(type) {
	case *udpWriter:
		_, err := d.pc.WriteToUDP(ww.buf, ww.raddr)
		return err
	case *kcpWriter:
		_, err := ww.sess.Write(ww.buf)
		return err
	default:
		return fmt.Errorf("udpdriver: EndSend on unknown writer type")
	}
}

func (d *Driver) reliableSession(c *Conn) (*kcp.UDPSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kcp != nil {
		return c.kcp, nil
	}

	sess, err := kcp.DialWithOptions(c.remote.String(), nil, d.kcpDataShards, d.kcpParityShards)
	if err != nil {
		return nil, fmt.Errorf("udpdriver: dial reliable session to %v: %w", c.remote, err)
	}
	c.kcp = sess
	return sess, nil
}

type udpWriter struct {
	pc    *net.UDPConn
	raddr *net.UDPAddr
	buf   []byte
}

func (w *udpWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

type kcpWriter struct {
	sess *kcp.UDPSession
	buf  []byte
}

func (w *kcpWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}
