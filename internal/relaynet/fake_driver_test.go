package relaynet

import (
	"context"

	"github.com/nullchannel/relaynet/transport"
)

// fakeConn is the minimal transport.Conn used by fakeDriver.
type fakeConn struct{ addr string }

func (c *fakeConn) RemoteAddr() string { return c.addr }

// fakeWriter collects whatever was written to it so a test can inspect
// the exact bytes a Sender transmitted.
type fakeWriter struct {
	conn transport.Conn
	buf  []byte
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// fakeDriver is an in-memory transport.Driver: Accept returns queued
// connections, PopEvent returns queued events per connection, and every
// EndSend'd frame is recorded per connection for assertions.
type fakeDriver struct {
	pendingAccepts []transport.Conn
	events         map[transport.Conn][]transport.Event
	sent           map[transport.Conn][][]byte
	disconnected   []transport.Conn
	scheduleErr    error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		events: make(map[transport.Conn][]transport.Event),
		sent:   make(map[transport.Conn][][]byte),
	}
}

func (d *fakeDriver) queueAccept(c transport.Conn) {
	d.pendingAccepts = append(d.pendingAccepts, c)
}

func (d *fakeDriver) queueEvent(c transport.Conn, ev transport.Event) {
	d.events[c] = append(d.events[c], ev)
}

func (d *fakeDriver) Connect(ctx context.Context, endpoint string) (transport.Conn, error) {
	c := &fakeConn{addr: endpoint}
	return c, nil
}

func (d *fakeDriver) Accept() (transport.Conn, error) {
	if len(d.pendingAccepts) == 0 {
		return nil, nil
	}
	c := d.pendingAccepts[0]
	d.pendingAccepts = d.pendingAccepts[1:]
	return c, nil
}

func (d *fakeDriver) BeginSend(kind transport.PipelineKind, c transport.Conn) (transport.Writer, error) {
	return &fakeWriter{conn: c}, nil
}

func (d *fakeDriver) AbortSend(w transport.Writer) {}

func (d *fakeDriver) EndSend(w transport.Writer) error {
	fw := w.(*fakeWriter)
	d.sent[fw.conn] = append(d.sent[fw.conn], fw.buf)
	return nil
}

func (d *fakeDriver) PopEvent(c transport.Conn) (transport.Event, error) {
	q := d.events[c]
	if len(q) == 0 {
		return transport.Event{Kind: transport.EventEmpty}, nil
	}
	ev := q[0]
	d.events[c] = q[1:]
	return ev, nil
}

func (d *fakeDriver) Disconnect(c transport.Conn) {
	d.disconnected = append(d.disconnected, c)
}

func (d *fakeDriver) ScheduleUpdate() error { return d.scheduleErr }

func (d *fakeDriver) Close() error { return nil }
