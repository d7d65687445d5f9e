package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LocoMH/wwtbam-server/domain"
	"github.com/LocoMH/wwtbam-server/metrics"
)

var (
	ErrClosed         = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func DefaultOptions() Options {
	return Options{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 64 << 10,
		SendBuffer:     256,
	}
}

// Conn is one client session. It is registered only once its handshake
// succeeds and is always unregistered when the read pump exits.
type Conn struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	gone      chan struct{}
	closeOnce sync.Once
	opts      Options
	registry  domain.Registry
	handler   domain.MessageHandler
	metrics   *metrics.Relay
}

func NewConn(id string, ws *websocket.Conn, r domain.Registry, h domain.MessageHandler, opts Options, m *metrics.Relay) *Conn {
	return &Conn{
		id:       id,
		ws:       ws,
		send:     make(chan []byte, opts.SendBuffer),
		done:     make(chan struct{}),
		gone:     make(chan struct{}),
		opts:     opts,
		registry: r,
		handler:  h,
		metrics:  m,
	}
}

func (c *Conn) ID() string { return c.id }

// Send queues data for the writer. It never blocks.
func (c *Conn) Send(data []byte) error {
	if c.Closing() {
		return ErrClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close asks the writer to flush queued messages, send a close frame and
// drop the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Closing reports whether Close has been called.
func (c *Conn) Closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Disconnected is closed once the read pump has exited and the connection
// has left the registry.
func (c *Conn) Disconnected() <-chan struct{} {
	return c.gone
}

func (c *Conn) Start() {
	c.metrics.ConnectionOpened()
	slog.Debug("client connected", "clientId", c.id, "remote", c.ws.RemoteAddr().String())
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		c.registry.Unregister(c)
		c.Close()
		c.ws.Close()
		c.metrics.ConnectionClosed()
		slog.Debug("client disconnected", "clientId", c.id)
		close(c.gone)
	}()

	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Error("read error", "clientId", c.id, "error", err)
			}
			return
		}

		// A closing session only drains input until the peer answers the
		// close frame.
		if c.Closing() {
			continue
		}
		c.handler.Handle(c, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			if err := c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
				return
			}
			// Wait for the peer to answer the close frame so unread input
			// does not reset the socket under the replies just flushed.
			select {
			case <-c.gone:
			case <-time.After(c.opts.WriteWait):
			}
			return
		}
	}
}

// flush writes whatever is still queued, e.g. an error reply sent right
// before Close.
func (c *Conn) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	return c.ws.WriteMessage(messageType, data)
}
