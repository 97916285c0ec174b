// Package wsdriver is a transport.Driver backed by
// github.com/gorilla/websocket, following the same read/write pump split
// and ping/pong liveness scheme as phenix/web/broker's Client, adapted to
// carry raw binary wire frames instead of JSON requests. Only the
// Unreliable named pipeline is meaningful over a single WebSocket
// connection (TCP underneath already orders and retransmits), so every
// PipelineKind maps to the same connection.
package wsdriver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	log "github.com/nullchannel/relaynet/pkg/minilog"
	"github.com/nullchannel/relaynet/transport"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn wraps one live WebSocket connection plus its inbound event queue,
// filled by a dedicated read pump goroutine (mirrors client.go's read()).
type Conn struct {
	remote string
	ws     *websocket.Conn

	mu     sync.Mutex
	queue  []transport.Event
	closed bool

	done chan struct{}
	once sync.Once
}

func (c *Conn) RemoteAddr() string { return c.remote }

func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		remote: ws.RemoteAddr().String(),
		ws:     ws,
		done:   make(chan struct{}),
	}
	c.push(transport.Event{Kind: transport.EventConnect})
	go c.readPump()
	go c.pingPump()
	return c
}

func (c *Conn) push(ev transport.Event) {
	c.mu.Lock()
	c.queue = append(c.queue, ev)
	c.mu.Unlock()
}

func (c *Conn) pop() transport.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return transport.Event{Kind: transport.EventEmpty}
	}
	ev := c.queue[0]
	c.queue = c.queue[1:]
	return ev
}

func (c *Conn) readPump() {
	defer c.stop()

	c.ws.SetReadLimit(maxMsgSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug("wsdriver: read from %v: %v", c.remote, err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		c.push(transport.Event{Kind: transport.EventData, Data: data})
	}
}

func (c *Conn) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) stop() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		c.push(transport.Event{Kind: transport.EventDisconnect})
		c.ws.Close()
	})
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Driver implements transport.Driver over one gorilla/websocket listener
// (server role) or a single dialed connection (client role).
type Driver struct {
	mu       sync.Mutex
	pending  []*Conn
	conns    map[*Conn]bool
	server   *http.Server
	addr     string
}

// NewServer starts an HTTP server on addr upgrading every request on path
// to a WebSocket connection, queuing each as a new pending Accept.
func NewServer(addr, path string) *Driver {
	d := &Driver{
		addr:  addr,
		conns: make(map[*Conn]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, d.handleUpgrade)
	d.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("wsdriver: serve %v: %v", addr, err)
		}
	}()

	return d
}

func (d *Driver) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("wsdriver: upgrade from %v: %v", r.RemoteAddr, err)
		return
	}

	c := newConn(ws)

	d.mu.Lock()
	d.conns[c] = true
	d.pending = append(d.pending, c)
	d.mu.Unlock()
}

// Connect dials url (client role), e.g. "ws://host:port/path".
func (d *Driver) Connect(ctx context.Context, url string) (transport.Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("wsdriver: dial %v: %w", url, err)
	}

	c := newConn(ws)

	d.mu.Lock()
	if d.conns == nil {
		d.conns = make(map[*Conn]bool)
	}
	d.conns[c] = true
	d.mu.Unlock()

	return c, nil
}

func (d *Driver) Accept() (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) == 0 {
		return nil, nil
	}
	c := d.pending[0]
	d.pending = d.pending[1:]
	return c, nil
}

// ScheduleUpdate is a no-op: the read/ping pumps run continuously on
// their own goroutines per connection rather than being driven by tick.
func (d *Driver) ScheduleUpdate() error { return nil }

func (d *Driver) PopEvent(conn transport.Conn) (transport.Event, error) {
	c, ok := conn.(*Conn)
	if !ok {
		return transport.Event{}, fmt.Errorf("wsdriver: PopEvent on foreign conn type")
	}
	return c.pop(), nil
}

func (d *Driver) Disconnect(conn transport.Conn) {
	c, ok := conn.(*Conn)
	if !ok {
		return
	}
	c.stop()

	d.mu.Lock()
	delete(d.conns, c)
	d.mu.Unlock()
}

type wsWriter struct {
	conn *Conn
	buf  []byte
}

func (w *wsWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (d *Driver) BeginSend(kind transport.PipelineKind, conn transport.Conn) (transport.Writer, error) {
	c, ok := conn.(*Conn)
	if !ok {
		return nil, fmt.Errorf("wsdriver: BeginSend on foreign conn type")
	}
	return &wsWriter{conn: c}, nil
}

func (d *Driver) AbortSend(w transport.Writer) { _ = w }

func (d *Driver) EndSend(w transport.Writer) error {
	ww, ok := w.(*wsWriter)
	if !ok {
		return fmt.Errorf("wsdriver: EndSend on foreign writer type")
	}
	if ww.conn.isClosed() {
		return fmt.Errorf("wsdriver: connection %v closed", ww.conn.remote)
	}

	ww.conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ww.conn.ws.WriteMessage(websocket.BinaryMessage, ww.buf)
}

// Close shuts down the listener (if any) and every live connection.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for c := range d.conns {
		c.stop()
	}
	if d.server != nil {
		return d.server.Close()
	}
	return nil
}
