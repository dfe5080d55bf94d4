package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/taskboard/taskboard-api/internal/api/metrics"
)

// Room naming. Names are part of the realtime contract.
const (
	AdminRoom  = "admins"
	GlobalRoom = "tasks"
)

// UserRoom is the per-user room every connection joins on connect.
func UserRoom(userID string) string { return "user:" + userID }

// TaskRoom is the per-task room managed by subscribe/unsubscribe requests.
func TaskRoom(taskID string) string { return "task:" + taskID }

// Hub is the explicit connection registry: a map from room name to the set of
// member clients, guarded by one mutex. Membership is process-scoped and never
// persisted; disconnect drops all of a client's rooms.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		log:     log,
	}
}

// Register adds a freshly authenticated client and joins its standing rooms:
// the personal user room and, for admins, the admin room. Every client is also
// a member of the global task feed.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	h.joinLocked(UserRoom(c.UserID), c)
	h.joinLocked(GlobalRoom, c)
	if c.IsAdmin {
		h.joinLocked(AdminRoom, c)
	}

	metrics.WSConnections.Set(float64(len(h.clients)))
	h.log.Debug().Str("user_id", c.UserID).Int("connections", len(h.clients)).Msg("client connected")
}

// Unregister removes the client from every room and closes its send channel.
// Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(c.send)

	metrics.WSConnections.Set(float64(len(h.clients)))
	h.log.Debug().Str("user_id", c.UserID).Int("connections", len(h.clients)).Msg("client disconnected")
}

// Join adds the client to a room. Idempotent: joining a room the client is
// already in is a no-op.
func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	h.joinLocked(room, c)
}

// Leave removes the client from a room. Idempotent.
func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast delivers msg to every member of the room. Slow consumers have the
// message dropped rather than blocking delivery to the rest of the room.
func (h *Hub) Broadcast(room string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[room] {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Str("user_id", c.UserID).Str("room", room).Msg("send buffer full, dropping message")
		}
	}
}

// ConnectionCount reports the number of live connections, for diagnostics.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize reports the number of members in a room, for diagnostics and tests.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) joinLocked(room string, c *Client) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}
