package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mkarpenko/pairchat/internal/metrics"
)

// EventType tags frames pushed to clients.
type EventType string

const (
	EventPing    EventType = "ping"
	EventMessage EventType = "message"
)

// Event is the frame the hub pushes to connected clients.
type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// PresenceMarker is what the hub needs from the presence tracker.
type PresenceMarker interface {
	MarkOnline(ctx context.Context, userID uint)
	MarkOffline(ctx context.Context, userID uint)
}

// Hub indexes live connections by user so a persisted message can be pushed
// to both conversation participants. One user may hold several connections.
type Hub struct {
	clients     map[uuid.UUID]*Client
	userClients map[uint]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	presence PresenceMarker

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(presence PresenceMarker) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[uint]map[uuid.UUID]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		presence:    presence,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run processes registration and the heartbeat until Stop is called.
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.heartbeat()
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		client.Conn.Close()
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.userClients = make(map[uint]map[uuid.UUID]*Client)
}

// Register hands the client to the run loop. A no-op once the hub is
// stopped, so callers never block on a dead loop.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[uuid.UUID]*Client)
	}
	h.userClients[client.UserID][client.ID] = client

	metrics.WsConnections.Inc()
	log.Debug().Str("client_id", client.ID.String()).Uint("user_id", client.UserID).Msg("ws client registered")

	if h.presence != nil {
		h.presence.MarkOnline(h.ctx, client.UserID)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	delete(h.clients, client.ID)
	if userClients, ok := h.userClients[client.UserID]; ok {
		delete(userClients, client.ID)
		if len(userClients) == 0 {
			delete(h.userClients, client.UserID)
			if h.presence != nil {
				h.presence.MarkOffline(h.ctx, client.UserID)
			}
		}
	}
	close(client.Send)

	metrics.WsConnections.Dec()
	log.Debug().Str("client_id", client.ID.String()).Uint("user_id", client.UserID).Msg("ws client unregistered")
}

// SendToUser queues an event to every live connection of the user. Slow
// consumers are skipped rather than blocking delivery to others.
func (h *Hub) SendToUser(userID uint, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.userClients[userID] {
		select {
		case client.Send <- payload:
		default:
			log.Warn().Str("client_id", client.ID.String()).Msg("ws client send queue full")
		}
	}
}

// PushEvent marshals and fans an event out to every listed user.
func (h *Hub) PushEvent(eventType EventType, data interface{}, userIDs ...uint) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Msg("ws marshal event data")
		return
	}
	frame, err := json.Marshal(Event{Type: eventType, Data: raw, Timestamp: time.Now()})
	if err != nil {
		log.Error().Err(err).Msg("ws marshal event")
		return
	}
	for _, id := range userIDs {
		h.SendToUser(id, frame)
	}
}

// ConnectedUsers reports users with at least one live connection.
func (h *Hub) ConnectedUsers() []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]uint, 0, len(h.userClients))
	for id := range h.userClients {
		users = append(users, id)
	}
	return users
}

// heartbeat pings every client and refreshes presence marks so TTLs do not
// lapse while a connection stays open.
func (h *Hub) heartbeat() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	frame, err := json.Marshal(Event{Type: EventPing, Timestamp: time.Now()})
	if err != nil {
		return
	}
	for _, client := range h.clients {
		select {
		case client.Send <- frame:
		default:
		}
	}
	if h.presence != nil {
		for userID := range h.userClients {
			h.presence.MarkOnline(h.ctx, userID)
		}
	}
}
