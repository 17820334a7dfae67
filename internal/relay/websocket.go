package relay

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single frame write may take before the
// connection is considered dead.
const writeWait = 10 * time.Second

// pongWait/pingPeriod implement the standard gorilla/websocket keepalive
// pattern: the server pings well inside the read deadline so a live but
// quiet connection is never mistaken for a dead one.
const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// FrameHandler processes one client-originated frame. *Hub satisfies this
// directly; gameserver.GameServer wraps a Hub to additionally inspect
// broadcast frames by their inner payload type, per spec.md §4.8.
type FrameHandler interface {
	HandleFrame(sub Subscriber, raw []byte)
}

// WSConn adapts a *websocket.Conn to Subscriber, serializing writes onto a
// buffered outbound channel so concurrent Deliver calls from Broadcast
// never race gorilla/websocket's single-writer requirement.
type WSConn struct {
	id      int
	conn    *websocket.Conn
	send    chan Frame
	hub     *Hub
	handler FrameHandler
	onClose func(Subscriber)

	closeOnce sync.Once
	done      chan struct{}
}

// NewWSConn wraps conn, registering it as subscriber id against hub. By
// default ReadPump dispatches frames straight to hub; call
// SetFrameHandler to route through an interceptor (e.g. the game server)
// instead.
func NewWSConn(id int, conn *websocket.Conn, hub *Hub) *WSConn {
	return &WSConn{
		id:      id,
		conn:    conn,
		send:    make(chan Frame, 64),
		hub:     hub,
		handler: hub,
		done:    make(chan struct{}),
	}
}

// SetFrameHandler overrides what ReadPump dispatches incoming frames to.
func (c *WSConn) SetFrameHandler(h FrameHandler) { c.handler = h }

// SetOnClose installs a callback invoked exactly once when the connection
// closes (either pump exiting), after Close has unsubscribed it from the
// hub. internal/gameserver wires this to its own Disconnect so
// the transport-authenticated client-slots entry is dropped the moment
// the socket goes away, per spec.md §7's disconnect handling.
func (c *WSConn) SetOnClose(fn func(Subscriber)) { c.onClose = fn }

// ID implements Subscriber.
func (c *WSConn) ID() int { return c.id }

// Deliver implements Subscriber, queueing f for the write pump. A full
// outbound buffer drops the frame rather than blocking the broadcaster —
// spec.md §5 places backpressure squarely on the transport.
func (c *WSConn) Deliver(f Frame) {
	select {
	case c.send <- f:
	default:
		log.Printf("relay: ws subscriber %d outbound buffer full, dropping frame", c.id)
	}
}

// Close stops both pumps and closes the underlying connection, safe to
// call more than once.
func (c *WSConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
		c.hub.UnsubscribeAll(c)
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

// ReadPump reads client frames until the connection closes, dispatching
// each to the connection's FrameHandler (the hub unless SetFrameHandler
// replaced it). Call in its own goroutine; it unsubscribes c
// from every channel and closes c before returning.
func (c *WSConn) ReadPump() {
	defer func() {
		c.hub.UnsubscribeAll(c)
		c.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handler.HandleFrame(c, raw)
	}
}

// WritePump drains c.send to the socket and pings on pingPeriod. Call in
// its own goroutine alongside ReadPump.
func (c *WSConn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			data, err := json.Marshal(f)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// ServeHTTPUpgrade upgrades r to a websocket connection, registers it with
// hub under a fresh subscriber id from nextID, routes incoming frames
// through handler (pass hub itself for plain relay behavior, or an
// interceptor like gameserver.GameServer), and runs its pumps until the
// client disconnects. Intended to be wired directly as an http.HandlerFunc.
func ServeHTTPUpgrade(hub *Hub, handler FrameHandler, nextID func() int, w http.ResponseWriter, r *http.Request) {
	ServeHTTPUpgradeWithClose(hub, handler, nil, nextID, w, r)
}

// ServeHTTPUpgradeWithClose is ServeHTTPUpgrade plus an onClose callback
// invoked once the connection's pumps have shut down (after it has already
// been unsubscribed from hub) — the hook a caller like the game server
// uses to drop its own per-client bookkeeping on disconnect.
func ServeHTTPUpgradeWithClose(hub *Hub, handler FrameHandler, onClose func(Subscriber), nextID func() int, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("relay: websocket upgrade failed: %v", err)
		return
	}
	wsConn := NewWSConn(nextID(), conn, hub)
	wsConn.SetFrameHandler(handler)
	if onClose != nil {
		wsConn.SetOnClose(onClose)
	}
	go wsConn.WritePump()
	wsConn.ReadPump()
}
