// Package websocket pushes change notifications to open UI windows so they
// can reload the rows another window just wrote.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Entities that send notifications.
const (
	EntityMember     = "member"
	EntityDues       = "dues"
	EntityAttendance = "attendance"
	EntityWorkHours  = "work_hours"
	EntitySettings   = "settings"
	EntityImport     = "import"
	EntityBackup     = "backup"
)

// Actions carried in a notification.
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionDeleted   = "deleted"
	ActionRestored  = "restored"
	ActionPurged    = "purged"
	ActionCompleted = "completed"
)

// Message is one change notification. Type is "<entity>_<action>".
type Message struct {
	Type     string    `json:"type"`
	Entity   string    `json:"entity"`
	Action   string    `json:"action"`
	ID       int64     `json:"id,omitempty"`
	MemberID int64     `json:"member_id,omitempty"`
	At       time.Time `json:"at"`
}

func NewMessage(entity, action string, id int64) Message {
	return Message{
		Type:   entity + "_" + action,
		Entity: entity,
		Action: action,
		ID:     id,
		At:     time.Now().UTC(),
	}
}

// ForMember sets the member a ledger row belongs to.
func (m Message) ForMember(memberID int64) Message {
	m.MemberID = memberID
	return m
}

// Hub tracks connected clients and fans messages out to them. A nil *Hub
// accepts broadcasts and drops them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("client connected", "clients", h.ClientCount())
}

// Unregister removes the client and closes its send channel. Calling it twice
// is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast queues msg for every client subscribed to its entity. A client
// whose buffer is full misses the message; it reloads on the next one.
func (h *Hub) Broadcast(msg Message) {
	if h == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.clients {
		if !c.wants(msg.Entity) {
			continue
		}
		select {
		case c.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("dropped notification for slow clients", "type", msg.Type, "clients", dropped)
	}
}

// Notify is shorthand for Broadcast(NewMessage(entity, action, id)).
func (h *Hub) Notify(entity, action string, id int64) {
	h.Broadcast(NewMessage(entity, action, id))
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
