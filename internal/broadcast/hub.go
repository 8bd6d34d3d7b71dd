package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrHubStopped = errors.New("broadcast: hub stopped")

// Hub fans published messages out to websocket clients subscribed to the
// message's channel. Clients that cannot keep up are disconnected.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*client]struct{}
	clients  map[*client]struct{}

	register   chan *client
	unregister chan *client
	broadcast  chan Message

	upgrader websocket.Upgrader
	ctx      context.Context
	cancel   context.CancelFunc
	log      *zap.Logger

	sent    atomic.Int64
	dropped atomic.Int64
}

var _ Publisher = (*Hub)(nil)

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		channels:   make(map[string]map[*client]struct{}),
		clients:    make(map[*client]struct{}),
		register:   make(chan *client, 64),
		unregister: make(chan *client, 64),
		broadcast:  make(chan Message, 1024),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
		log:    log.Named("hub"),
	}
}

// Run is the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case m := <-h.broadcast:
			h.fanOut(m)
		}
	}
}

func (h *Hub) Stop() { h.cancel() }

// Publish queues a message for every client subscribed to channel.
func (h *Hub) Publish(ctx context.Context, channel, event string, payload map[string]any) error {
	if h.ctx.Err() != nil {
		return ErrHubStopped
	}
	m := Message{Channel: channel, Event: event, Payload: payload, SentAt: time.Now().UTC()}
	select {
	case h.broadcast <- m:
		return nil
	case <-h.ctx.Done():
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscribers reports the number of clients on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) Sent() int64    { return h.sent.Load() }
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// ServeWS upgrades the request and subscribes the connection to the comma
// separated channels in the "channels" query parameter. With none given the
// client listens on ChannelQuestions.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := newClient(h, conn, uuid.NewString())
	for _, ch := range strings.Split(r.URL.Query().Get("channels"), ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			c.subs[ch] = struct{}{}
		}
	}
	if len(c.subs) == 0 {
		c.subs[ChannelQuestions] = struct{}{}
	}

	select {
	case h.register <- c:
	case <-h.ctx.Done():
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	for ch := range c.subs {
		h.join(c, ch)
	}
	h.log.Debug("client registered", zap.String("client", c.id), zap.Int("clients", len(h.clients)))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop must be called with mu held.
func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for ch := range c.subs {
		h.leave(c, ch)
	}
	close(c.send)
	h.log.Debug("client unregistered", zap.String("client", c.id))
}

func (h *Hub) join(c *client, ch string) {
	set := h.channels[ch]
	if set == nil {
		set = make(map[*client]struct{})
		h.channels[ch] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) leave(c *client, ch string) {
	if set := h.channels[ch]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.channels, ch)
		}
	}
}

func (h *Hub) subscribe(c *client, ch string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	c.subs[ch] = struct{}{}
	h.join(c, ch)
}

func (h *Hub) unsubscribe(c *client, ch string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(c.subs, ch)
	h.leave(c, ch)
}

func (h *Hub) fanOut(m Message) {
	b, err := json.Marshal(m)
	if err != nil {
		h.log.Error("marshal broadcast", zap.String("channel", m.Channel), zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.channels[m.Channel] {
		select {
		case c.send <- b:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
			h.log.Warn("slow client dropped", zap.String("client", c.id), zap.String("channel", m.Channel))
			h.drop(c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.drop(c)
	}
}
