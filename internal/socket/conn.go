// FilePath: internal/socket/conn.go
package socket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nestlink/bottlehub/internal/errors"
	"github.com/nestlink/bottlehub/internal/protocol"
	nuts "github.com/vaudience/go-nuts"
)

const (
	// writeWait bounds a single frame write to a slow peer.
	writeWait = 10 * time.Second
	// pongWait is how long we tolerate silence before dropping the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = 54 * time.Second
	// maxMessageSize bounds inbound frames; hub payloads are tiny.
	maxMessageSize = 8192
)

// Conn wraps one websocket connection with a buffered outbound queue so
// Send never blocks a caller on a slow peer. It is the transport half of
// the hub's connection model; identity binding lives in the registry.
type Conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	// mu guards closed. The send channel itself is never closed: hub
	// goroutines may race Send against the teardown of a connection they
	// looked up moments earlier, and a send on a closed channel would
	// panic the whole process instead of failing that one delivery.
	mu     sync.Mutex
	closed bool

	// deviceID is set once the peer identifies itself as a device.
	// Read and written only from the connection's read loop.
	deviceID string
	// ownerID is set once the peer identifies itself as a viewer.
	ownerID string
}

func newConn(ws *websocket.Conn, sendBuffer int) *Conn {
	return &Conn{
		id:   nuts.NID("con", 12),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string {
	return c.id
}

// Send queues an event envelope for delivery. A full buffer counts as an
// unreachable peer rather than blocking hub goroutines behind it.
func (c *Conn) Send(event string, data any) error {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return errors.NewInternalError("failed to encode event payload", err)
		}
		raw = encoded
	}

	frame, err := json.Marshal(protocol.Envelope{Event: event, Data: raw})
	if err != nil {
		return errors.NewInternalError("failed to encode event envelope", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.NewUnreachableError("connection "+c.id+" is closed", nil)
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return errors.NewUnreachableError("send buffer full for connection "+c.id, nil)
	}
}

// Close terminates the connection. Safe to call from any goroutine and
// more than once; later Sends fail instead of panicking.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// writePump drains the send queue onto the wire and keeps the peer alive
// with periodic pings. One writer goroutine per connection; gorilla
// websocket permits at most one concurrent writer.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				nuts.L.Debugf("[Socket] Write failed on %s: %v", c.id, err)
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, nil)
			return
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
