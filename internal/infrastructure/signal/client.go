package signal

import (
	"sync"
	"time"

	"relaycast/internal/core/domain"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// client is the per-connection state: identity, current room, and which room
// names this connection has authenticated for (held for the connection's
// lifetime).
type client struct {
	id   domain.SocketID
	conn *websocket.Conn

	writeMu      sync.Mutex
	writeTimeout time.Duration

	mu      sync.Mutex
	room    domain.RoomName
	name    string
	authed  map[domain.RoomName]bool
	limiter *rate.Limiter
}

func newClient(id domain.SocketID, conn *websocket.Conn, writeTimeout time.Duration, limiter *rate.Limiter) *client {
	return &client{
		id:           id,
		conn:         conn,
		writeTimeout: writeTimeout,
		authed:       make(map[domain.RoomName]bool),
		limiter:      limiter,
	}
}

func (c *client) send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

func (c *client) setRoom(room domain.RoomName, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = room
	c.name = name
}

func (c *client) currentRoom() (domain.RoomName, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room, c.name
}

func (c *client) markAuthed(room domain.RoomName) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authed[room] = true
}

func (c *client) isAuthed(room domain.RoomName) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authed[room]
}
