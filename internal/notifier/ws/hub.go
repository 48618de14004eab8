package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/mauv0809/clubledger/internal/metrics"
	"github.com/mauv0809/clubledger/internal/notifier"
)

const (
	channelName = "websocket"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one websocket connection of a member.
type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	memberID string
	rooms    map[string]bool
}

type subscription struct {
	client *client
	room   string
	join   bool
}

// command is what a connected client may send: {"action":"join","room":"match:42"}.
type command struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

var _ notifier.Notifier = (*Hub)(nil)

// Hub tracks live connections per member and per room.
type Hub struct {
	register   chan *client
	unregister chan *client
	subscribe  chan subscription
	done       chan struct{}

	mu      sync.RWMutex
	members map[string]map[*client]bool
	rooms   map[string]map[*client]bool
	clients map[*client]bool

	metrics metrics.Metrics
}

func NewHub(metrics metrics.Metrics) *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		subscribe:  make(chan subscription),
		done:       make(chan struct{}),
		members:    make(map[string]map[*client]bool),
		rooms:      make(map[string]map[*client]bool),
		clients:    make(map[*client]bool),
		metrics:    metrics,
	}
}

// Run serves registrations until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.remove(c)
			}
			h.mu.Unlock()
			close(h.done)
			log.Info("Websocket hub stopped")
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			addTo(h.members, c.memberID, c)
			for room := range c.rooms {
				addTo(h.rooms, room, c)
			}
			h.mu.Unlock()
			log.Debug("Websocket client registered", "memberID", c.memberID)
		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				h.remove(c)
			}
			h.mu.Unlock()
			log.Debug("Websocket client unregistered", "memberID", c.memberID)
		case sub := <-h.subscribe:
			h.mu.Lock()
			if h.clients[sub.client] {
				if sub.join {
					sub.client.rooms[sub.room] = true
					addTo(h.rooms, sub.room, sub.client)
				} else {
					delete(sub.client.rooms, sub.room)
					removeFrom(h.rooms, sub.room, sub.client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(c *client) {
	delete(h.clients, c)
	removeFrom(h.members, c.memberID, c)
	for room := range c.rooms {
		removeFrom(h.rooms, room, c)
	}
	close(c.send)
}

func addTo(index map[string]map[*client]bool, key string, c *client) {
	if _, ok := index[key]; !ok {
		index[key] = make(map[*client]bool)
	}
	index[key][c] = true
}

func removeFrom(index map[string]map[*client]bool, key string, c *client) {
	delete(index[key], c)
	if len(index[key]) == 0 {
		delete(index, key)
	}
}

// Connected returns the number of live connections.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of live connections subscribed to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Notify pushes msg to every connection of memberID. Offline members are skipped.
func (h *Hub) Notify(ctx context.Context, memberID string, msg notifier.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(h.members[memberID], payload)
	return nil
}

// Broadcast pushes msg to the room's subscribers, or to everyone when msg has no room.
func (h *Hub) Broadcast(ctx context.Context, msg notifier.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if msg.Room != "" {
		h.deliver(h.rooms[msg.Room], payload)
	} else {
		h.deliver(h.clients, payload)
	}
	return nil
}

// deliver must be called with h.mu held for reading. Slow clients drop messages.
func (h *Hub) deliver(targets map[*client]bool, payload []byte) {
	for c := range targets {
		select {
		case c.send <- payload:
			h.metrics.IncNotifSent(channelName)
		default:
			h.metrics.IncNotifFailed(channelName)
			log.Warn("Websocket send buffer full, dropping message", "memberID", c.memberID)
		}
	}
}

// ServeWS upgrades the request and registers the connection for memberID,
// subscribed to the given rooms.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, memberID string, rooms ...string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade websocket connection", "error", err, "memberID", memberID)
		return
	}
	c := &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		memberID: memberID,
		rooms:    make(map[string]bool),
	}
	for _, room := range rooms {
		if room != "" {
			c.rooms[room] = true
		}
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("Websocket closed unexpectedly", "error", err, "memberID", c.memberID)
			}
			return
		}
		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.Room == "" {
			log.Debug("Ignoring websocket message", "memberID", c.memberID)
			continue
		}
		if cmd.Action != "join" && cmd.Action != "leave" {
			continue
		}
		select {
		case c.hub.subscribe <- subscription{client: c, room: cmd.Room, join: cmd.Action == "join"}:
		case <-c.hub.done:
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug("Websocket write failed", "error", err, "memberID", c.memberID)
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
