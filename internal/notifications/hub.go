package notifications

import (
	"context"
	"errors"
	"sync"

	"breaksphere/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// Socket caps. Anonymous listeners share the "" key and only count toward
// the process-wide cap.
const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

const hubName = "hint hub"

// Hub tracks the hint listeners of this instance, grouped by user id.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]map[*Client]struct{}
	total     int
	closing   sync.Once
	done      chan struct{}
	log       *observability.WSLogger
}

func NewHub() *Hub {
	return &Hub{
		listeners: make(map[string]map[*Client]struct{}),
		done:      make(chan struct{}),
		log:       observability.NewWSLogger(hubName),
	}
}

func (h *Hub) Name() string { return hubName }

// Register admits conn as a listener for userID, or reports which cap it hit.
func (h *Hub) Register(userID string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.done:
		return nil, ErrServerFull
	default:
	}
	if h.total >= maxTotalConns {
		return nil, ErrServerFull
	}
	set := h.listeners[userID]
	if userID != "" && len(set) >= maxConnsPerUser {
		return nil, ErrUserFull
	}
	if set == nil {
		set = make(map[*Client]struct{})
		h.listeners[userID] = set
	}

	c := NewClient(h, conn, userID)
	set[c] = struct{}{}
	h.total++
	observability.WebSocketConnectionsTotal.Inc()
	h.log.LogConnect(context.Background(), userID)
	return c, nil
}

// UnregisterClient forgets c. Repeated calls are no-ops.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.listeners[c.UserID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.listeners, c.UserID)
	}
	h.total--
	observability.WebSocketConnectionsTotal.Dec()
	h.log.LogDisconnect(context.Background(), c.UserID, "unregister")
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// SendTo queues payload for every socket userID holds open.
func (h *Hub) SendTo(userID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.listeners[userID] {
		c.TrySend(payload)
	}
}

// Fanout queues payload for every listener, signed in or not. Slow
// listeners drop the frame instead of blocking the others.
func (h *Hub) Fanout(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.listeners {
		for c := range set {
			c.TrySend(payload)
		}
	}
}

// StartWiring relays hints published by any instance to local listeners
// until ctx ends.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartHintSubscriber(ctx, func(payload string) {
		h.Fanout([]byte(payload))
	})
}

// Shutdown closes every listener and refuses new ones. Safe to call twice.
func (h *Hub) Shutdown(_ context.Context) error {
	h.closing.Do(func() {
		h.mu.Lock()
		close(h.done)
		for _, set := range h.listeners {
			for c := range set {
				c.Close()
			}
		}
		observability.WebSocketConnectionsTotal.Sub(float64(h.total))
		h.listeners = make(map[string]map[*Client]struct{})
		h.total = 0
		h.mu.Unlock()
	})
	return nil
}

// Done is closed once Shutdown has run.
func (h *Hub) Done() <-chan struct{} { return h.done }
