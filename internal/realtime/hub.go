// Package realtime pushes JSON events to connected websocket clients grouped
// into rooms: one per user and one shared by administrators.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/bhavik262/pizza-delivery/internal/auth"
)

const (
	AdminRoom = "admins"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// UserRoom is the room every connection of userID joins.
func UserRoom(userID uuid.UUID) string {
	return "user:" + userID.String()
}

type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type client struct {
	conn  *websocket.Conn
	send  chan []byte
	rooms []string
}

type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	closed   bool
}

// NewHub accepts websocket upgrades from allowedOrigin; an empty origin
// accepts any.
func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		rooms: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Serve upgrades the request and joins the connection to the identity's rooms.
// It returns once the connection is registered; pumps run in the background.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, identity auth.Identity) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	rooms := []string{UserRoom(identity.UserID)}
	if identity.IsAdmin() {
		rooms = append(rooms, AdminRoom)
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), rooms: rooms}

	if !h.join(c) {
		conn.Close()
		return nil
	}
	log.Debug().Stringer("user_id", identity.UserID).Strs("rooms", rooms).Msg("realtime: client connected")

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

func (h *Hub) join(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	for _, room := range c.rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
	}
	return true
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	removed := false
	for _, room := range c.rooms {
		members := h.rooms[room]
		if _, ok := members[c]; ok {
			delete(members, c)
			removed = true
		}
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if removed {
		close(c.send)
	}
}

// readPump discards inbound messages; it exists to process pongs and
// notice when the peer goes away.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("realtime: connection closed unexpectedly")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish delivers event to every member of room without blocking. Members
// whose buffer is full miss the event.
func (h *Hub) Publish(room, event string, payload any) {
	msg, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("realtime: failed to encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- msg:
		default:
			log.Warn().Str("room", room).Str("event", event).Msg("realtime: client buffer full, event dropped")
		}
	}
}

func (h *Hub) ToUser(userID uuid.UUID, event string, payload any) {
	h.Publish(UserRoom(userID), event, payload)
}

func (h *Hub) ToAdmins(event string, payload any) {
	h.Publish(AdminRoom, event, payload)
}

// Members reports how many connections are in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Run blocks until ctx is done and then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, members := range h.rooms {
		for c := range members {
			h.removeLocked(c)
		}
	}
	log.Info().Msg("realtime: hub stopped")
	return nil
}
