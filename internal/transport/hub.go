package transport

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	maxConnectionsTotal = 500
	maxConnectionsPerIP = 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if isAllowedOrigin(origin) {
			return true
		}
		log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
		recordConnectionRejected("origin")
		return false
	},
}

// Hub owns every live Connection, generalizing the teacher's global
// WebSocketHub into per-room broadcast groups, with register/unregister
// as mutex-guarded methods rather than channels, plus a per-IP
// connection limiter.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection // by connection id
	byRoom      map[string]map[string]*Connection

	ipLimiter *ipConnLimiter

	Dispatcher *Dispatcher
}

// NewHub builds an empty Hub. Dispatch wires the game/identity layers
// in after construction since Dispatcher needs a reference back to Hub
// for broadcasts.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		byRoom:      make(map[string]map[string]*Connection),
		ipLimiter:   newIPConnLimiter(maxConnectionsPerIP),
	}
}

// Count reports the number of currently registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// ServeWS upgrades r into a WebSocket, registers the Connection, and
// runs its read loop until the socket closes or errors.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	h.mu.RLock()
	total := len(h.connections)
	h.mu.RUnlock()
	if total >= maxConnectionsTotal {
		recordConnectionRejected("total_limit")
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.ipLimiter.allow(ip) {
		recordConnectionRejected("ip_limit")
		http.Error(w, "too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.ipLimiter.release(ip)
		log.Printf("⚠️ WebSocket upgrade error: %v", err)
		return
	}

	c := newConnection(uuid.NewString(), conn, ip)
	h.register(c)
	updateWSConnections(h.Count())
	defer func() {
		h.unregister(c)
		h.ipLimiter.release(ip)
		updateWSConnections(h.Count())
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		incrementWSMessages()
		h.Dispatcher.handle(c, env)
	}
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c.id] = c
	log.Printf("📱 connection %s registered from %s (%d total)", c.id, c.ip, len(h.connections))
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, c.id)
	snap := c.Snapshot()
	if snap.RoomCode != "" {
		if group, ok := h.byRoom[snap.RoomCode]; ok {
			delete(group, c.id)
			if len(group) == 0 {
				delete(h.byRoom, snap.RoomCode)
			}
		}
	}
	log.Printf("📱 connection %s unregistered (%d remaining)", c.id, len(h.connections))
}

// JoinRoom moves c into roomCode's broadcast group, leaving any prior one.
func (h *Hub) JoinRoom(c *Connection, roomCode string, playerKey int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev := c.Snapshot().RoomCode; prev != "" {
		if group, ok := h.byRoom[prev]; ok {
			delete(group, c.id)
			if len(group) == 0 {
				delete(h.byRoom, prev)
			}
		}
	}
	c.setRoom(roomCode, playerKey)

	group, ok := h.byRoom[roomCode]
	if !ok {
		group = make(map[string]*Connection)
		h.byRoom[roomCode] = group
	}
	group[c.id] = c
}

// LeaveRoom removes c from its broadcast group without touching the
// connection itself (used on leaveRoom/kick while the socket stays open).
func (h *Hub) LeaveRoom(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	snap := c.Snapshot()
	if group, ok := h.byRoom[snap.RoomCode]; ok {
		delete(group, c.id)
		if len(group) == 0 {
			delete(h.byRoom, snap.RoomCode)
		}
	}
	c.clearRoom()
}

// BroadcastRoom emits event/data to every connection currently joined to
// roomCode.
func (h *Hub) BroadcastRoom(roomCode, event string, data any) {
	h.mu.RLock()
	group := h.byRoom[roomCode]
	conns := make([]*Connection, 0, len(group))
	for _, c := range group {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.send(event, data); err != nil {
			log.Printf("⚠️ broadcast to %s failed: %v", c.id, err)
		}
	}
}

// BroadcastRoomExcept is BroadcastRoom skipping one connection id.
func (h *Hub) BroadcastRoomExcept(roomCode, exceptConnID, event string, data any) {
	h.mu.RLock()
	group := h.byRoom[roomCode]
	conns := make([]*Connection, 0, len(group))
	for id, c := range group {
		if id == exceptConnID {
			continue
		}
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.send(event, data); err != nil {
			log.Printf("⚠️ broadcast to %s failed: %v", c.id, err)
		}
	}
}

// byConnID finds a currently registered connection by id, if still live.
func (h *Hub) byConnID(id string) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.connections[id]
	return c, ok
}

// byProfileID finds a currently registered connection bound to profileID.
func (h *Hub) byProfileID(profileID string) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.connections {
		if c.Snapshot().ProfileID == profileID {
			return c, true
		}
	}
	return nil, false
}
