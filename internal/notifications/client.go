package notifications

import (
	"sync"
	"time"

	"breaksphere/internal/middleware"
	"breaksphere/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 // hint clients only send control frames
	sendBuffer     = 64
)

// WSHub is implemented by hubs that own clients.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client is one hint subscriber. Hints only flow server to client, so the
// read side exists to service pongs and notice the peer leaving.
//
// Only the write loop writes to conn. Close asks it to send a close frame
// and hang up.
type Client struct {
	UserID string // empty for anonymous readers
	Send   chan []byte

	hub       WSHub
	conn      *websocket.Conn
	quit      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps conn for hub. conn may be nil in tests that never Serve.
func NewClient(hub WSHub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
		hub:    hub,
		conn:   conn,
		quit:   make(chan struct{}),
	}
}

// Serve runs the write loop in the background and the read loop until the
// peer disconnects or Close is called.
func (c *Client) Serve() {
	go c.writeLoop()
	c.readLoop()
}

// Close stops the client. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

func (c *Client) closed() bool {
	select {
	case <-c.quit:
		return true
	default:
		return false
	}
}

// TrySend queues message without blocking and reports whether it was queued.
// Hints are advisory, so a full buffer or closed client drops the message.
func (c *Client) TrySend(message []byte) bool {
	if c.closed() {
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "closed").Inc()
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "full").Inc()
		middleware.Logger.Debug("hint dropped", "user_id", c.UserID, "hub", c.hub.Name())
		return false
	}
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("hint client read error", "user_id", c.UserID, "error", err)
			}
			return
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.quit:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}
