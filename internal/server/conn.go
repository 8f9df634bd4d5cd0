// Package server wires the HTTP surface — the WebSocket upgrade endpoint
// plus health/stats probes — to the signaling dispatcher.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/diltdicker/redot-signalling-server/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 10 * time.Second
	maxMessageSize = 64 * 1024 // enough headroom for WebRTC SDP payloads
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn is the concrete signaling.Transport backed by a gorilla/websocket
// connection: a read-pump/write-pump goroutine pair with ping/pong
// keepalive. Send takes a pre-encoded frame (the codec owns encoding) and
// Close maps the dispatcher's close code onto a real WebSocket close
// frame instead of just severing the TCP connection.
type wsConn struct {
	conn   *websocket.Conn
	send   chan []byte
	hub    *signaling.Hub
	logger *slog.Logger
	peer   *signaling.Peer
}

func newWSConn(conn *websocket.Conn, hub *signaling.Hub, logger *slog.Logger) *wsConn {
	return &wsConn{
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    hub,
		logger: logger,
	}
}

// Send implements signaling.Transport.
func (c *wsConn) Send(frame []byte) {
	select {
	case c.send <- frame:
	default:
		// The write pump is backed up; drop rather than block the
		// dispatcher goroutine on a slow client.
		c.logger.Warn("dropping frame, send buffer full")
	}
}

// Close implements signaling.Transport.
func (c *wsConn) Close(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	close(c.send)
}

// start registers the connection with the hub and launches its pumps.
// Returns false if the hub rejected the connection (over capacity); the
// caller need not do anything further in that case since the hub has
// already closed it.
func (c *wsConn) start() bool {
	p := c.hub.Connect(c)
	if p == nil {
		c.conn.Close()
		return false
	}
	c.peer = p
	go c.writePump()
	go c.readPump()
	return true
}

func (c *wsConn) readPump() {
	defer c.hub.Disconnect(c.peer)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("read error", "peerID", c.peer.ID, "error", err)
			}
			return
		}

		frame, ok := signaling.Decode(raw)
		if !ok {
			c.peer.SendErr(signaling.CloseBadProto)
			continue
		}
		c.hub.Dispatch(c.peer, frame)
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
