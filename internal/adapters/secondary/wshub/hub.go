// Package wshub is the real-time emission sink: a websocket hub with rooms
// keyed by session id. Bots publish into a room; dashboard clients
// subscribed to that session receive the events. Keying by session id is
// what isolates concurrent sessions from each other on this shared resource.
package wshub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

type conn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *conn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(writeWait))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*conn]struct{}
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.New()
	}
	return &Hub{
		rooms: make(map[string]map[*conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
		log: log,
	}
}

// Subscribe upgrades the request and keeps the connection registered in the
// session's room until the peer goes away.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, sessionID string) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &conn{c: ws}
	h.mu.Lock()
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[*conn]struct{})
		h.rooms[sessionID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()

	h.log.WithField("session_id", sessionID).Debug("dashboard client subscribed")

	// Drain the connection; subscribers only listen, but reading is what
	// surfaces the close frame.
	go func() {
		defer h.remove(sessionID, c)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// Publish sends an event to every subscriber of the session's room. Fire and
// forget: an empty room or a dead connection is not the publisher's problem.
func (h *Hub) Publish(event string, sessionID string, payload map[string]any) {
	msg, err := json.Marshal(map[string]any{
		"event": event,
		"data":  payload,
	})
	if err != nil {
		h.log.WithError(err).Warn("could not marshal event")
		return
	}

	h.mu.RLock()
	conns := make([]*conn, 0, len(h.rooms[sessionID]))
	for c := range h.rooms[sessionID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.writeText(msg); err != nil {
			h.remove(sessionID, c)
		}
	}
}

func (h *Hub) remove(sessionID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[sessionID]; ok {
		if _, present := room[c]; present {
			delete(room, c)
			c.c.Close()
			if len(room) == 0 {
				delete(h.rooms, sessionID)
			}
		}
	}
}
