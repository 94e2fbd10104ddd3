package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection is one live WebSocket's metadata, generalizing the
// teacher's wsClient{conn, ip} with the slots §6.1 requires: persistent
// id, profile id, room code, and player key, plus the write-side mutex
// gorilla/websocket requires for concurrent writers.
type Connection struct {
	conn *websocket.Conn
	ip   string

	writeMu sync.Mutex

	mu           sync.RWMutex
	id           string
	persistentID string
	profileID    string
	roomCode     string
	playerKey    int
	connectedAt  time.Time
}

func newConnection(id string, conn *websocket.Conn, ip string) *Connection {
	return &Connection{conn: conn, ip: ip, id: id, connectedAt: time.Now()}
}

// ID is the server-assigned connection id (distinct from persistent id,
// which survives reconnects; this one does not).
func (c *Connection) ID() string { return c.id }

func (c *Connection) setIdentity(persistentID, profileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persistentID = persistentID
	c.profileID = profileID
}

func (c *Connection) setRoom(code string, key int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = code
	c.playerKey = key
}

func (c *Connection) clearRoom() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = ""
	c.playerKey = 0
}

// Snapshot is a read-only copy of a Connection's metadata slots.
type Snapshot struct {
	PersistentID string
	ProfileID    string
	RoomCode     string
	PlayerKey    int
}

func (c *Connection) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{PersistentID: c.persistentID, ProfileID: c.profileID, RoomCode: c.roomCode, PlayerKey: c.playerKey}
}

func (c *Connection) send(event string, data any) error {
	raw, err := marshalEnvelope(event, data, "")
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *Connection) sendAck(event string, data any, ackID string) error {
	raw, err := marshalEnvelope(event, data, ackID)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}
