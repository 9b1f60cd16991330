package notifications

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"campusconnect/internal/middleware"
	"campusconnect/internal/models"
	"campusconnect/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	maxConnsPerUser = 8
	maxTotalConns   = 10000
)

var (
	ErrUserConnLimit   = errors.New("user connection limit reached")
	ErrServerConnLimit = errors.New("server connection limit reached")
)

// Hub maps member ids to their live websocket clients.
type Hub struct {
	mu       sync.RWMutex
	conns    map[uint]map[*Client]struct{}
	total    int
	presence *Presence
	closed   bool
}

// NewHub creates a hub. The optional Redis client backs cross-instance presence.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		conns:    make(map[uint]map[*Client]struct{}),
		presence: NewPresence(rdb),
	}
}

func (h *Hub) Name() string { return "campus" }

// Presence exposes the hub's presence tracker.
func (h *Hub) Presence() *Presence { return h.presence }

// Register adds a connection for userID, enforcing connection limits.
func (h *Hub) Register(userID uint, role models.Role, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.closed || h.total >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrServerConnLimit
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, ErrUserConnLimit
	}

	client := NewClient(h, conn, userID, role)
	client.OnActivity = func(uid uint) { h.presence.Touch(context.Background(), uid) }
	m[client] = struct{}{}
	h.total++
	h.mu.Unlock()

	observability.WebSocketConnections.Inc()
	h.presence.Connect(context.Background(), userID)
	return client, nil
}

// UnregisterClient removes client. Safe to call more than once.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.total--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()

	if removed {
		observability.WebSocketConnections.Dec()
		h.presence.Disconnect(client.UserID)
	}
}

// SendToUser delivers message to every connection of userID on this instance.
func (h *Hub) SendToUser(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for c := range h.conns[userID] {
		c.TrySend(data)
	}
}

// SendToAll delivers message to every connection on this instance.
func (h *Hub) SendToAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// SendToRoles delivers message to local connections whose role is listed.
func (h *Hub) SendToRoles(roles []models.Role, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			if slices.Contains(roles, c.Role) {
				c.TrySend(data)
			}
		}
	}
}

// Connections returns the number of local connections of userID.
func (h *Hub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// StartWiring routes Redis messages from n to local connections.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.Subscribe(ctx, func(channel, payload string) {
		if channel == BroadcastChannel {
			h.SendToAll(payload)
			return
		}
		if role, ok := ParseRoleChannel(channel); ok {
			h.SendToRoles([]models.Role{role}, payload)
			return
		}
		userID, ok := ParseUserChannel(channel)
		if !ok {
			middleware.Logger.Warn("ignoring message on unknown channel", slog.String("channel", channel))
			return
		}
		h.SendToUser(userID, payload)
	})
}

// Shutdown closes every connection and stops presence tracking.
func (h *Hub) Shutdown(_ context.Context) error {
	h.presence.Stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for userID, clients := range h.conns {
		for c := range clients {
			if c.Conn == nil {
				continue
			}
			_ = c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
			if err := c.Conn.Close(); err != nil {
				middleware.Logger.Debug("websocket close failed", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
			}
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.total = 0
	return nil
}
