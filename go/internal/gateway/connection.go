package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fanzone/go/internal/auth"
	"github.com/mcdev12/fanzone/go/internal/live"
)

// Connection is one client socket subscribed to a single channel. It is the
// live.Subscriber the registry fans frames out to.
type Connection struct {
	id         string
	key        uuid.UUID
	capability auth.Capability
	conn       *websocket.Conn
	manager    *ConnectionManager

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	connectedAt  time.Time
	lastActivity atomic.Int64
}

func newConnection(cm *ConnectionManager, conn *websocket.Conn, key uuid.UUID, capability auth.Capability) *Connection {
	c := &Connection{
		id:          uuid.NewString(),
		key:         key,
		capability:  capability,
		conn:        conn,
		manager:     cm,
		send:        make(chan []byte, cm.config.SendBufferSize),
		done:        make(chan struct{}),
		connectedAt: cm.clock.Now(),
	}
	c.touch()
	return c
}

func (c *Connection) ID() string { return c.id }

// Deliver queues frame without blocking. It reports false when the queue is
// full or the connection is closing.
func (c *Connection) Deliver(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which closes the socket. Safe to call more
// than once and from any goroutine.
func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Connection) touch() {
	c.lastActivity.Store(c.manager.clock.Now().UnixNano())
}

func (c *Connection) idleSince() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	cfg := c.manager.config
	ticker := c.manager.clock.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to write message to WebSocket")
				c.Close()
				return
			}

		case <-ticker.Chan():
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to send ping")
				c.Close()
				return
			}

		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(cfg.WriteTimeout))
			return
		}
	}
}

// readPump turns inbound frames into coordinator events. It owns the
// subscription: when it returns the connection has left its channel.
func (c *Connection) readPump(ctx context.Context) {
	cfg := c.manager.config
	defer func() {
		c.manager.coordinator.Leave(c.key, c)
		c.manager.unregisterConnection(c)
		c.Close()
	}()

	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	// pongs count as activity; a peer that stops answering pings is swept
	// after IdleTimeout, ahead of the read deadline
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		c.touch()
		return nil
	})

	failures := 0
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("connection_id", c.id).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		c.touch()
		c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		if c.handleClientMessage(ctx, message) {
			failures = 0
			continue
		}
		failures++
		if failures >= cfg.MaxDecodeFailures {
			log.Warn().
				Str("connection_id", c.id).
				Int("failures", failures).
				Msg("closing connection after repeated malformed frames")
			return
		}
	}
}

// handleClientMessage reports false when message could not be decoded.
// Rejected events still count as well-formed.
func (c *Connection) handleClientMessage(ctx context.Context, message []byte) bool {
	ev, err := live.ParseEvent(message)
	if err != nil {
		c.reply(live.ErrorFrame(err, ""))
		return false
	}

	if _, err := c.manager.coordinator.HandleFrom(ctx, c.key, ev, c.capability, c); err != nil {
		var text string
		if post, ok := ev.(live.ChatPost); ok {
			text = post.Text
		}
		c.reply(live.ErrorFrame(err, text))
	}
	return true
}

func (c *Connection) reply(frame live.Frame) {
	data, err := frame.Marshal()
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.id).Msg("failed to marshal reply")
		return
	}
	if !c.Deliver(data) {
		log.Warn().Str("connection_id", c.id).Msg("dropping reply, send buffer full")
	}
}
