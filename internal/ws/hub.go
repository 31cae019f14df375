package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qaaqit/QaaqConnect30-sub003/internal/observability"
)

// Hub tracks the live sockets of authenticated users. A user may hold more
// than one socket (multiple devices); delivery targets all of them.
type Hub struct {
	clients  map[int]map[*websocket.Conn]bool
	connInfo map[*websocket.Conn]ConnInfo
	mu       sync.RWMutex
	writeMu  sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[int]map[*websocket.Conn]bool),
		connInfo: make(map[*websocket.Conn]ConnInfo),
	}
}

// AddClient registers an authenticated websocket connection for a user.
func (h *Hub) AddClient(userID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[*websocket.Conn]bool)
	}
	h.clients[userID][conn] = true
	h.connInfo[conn] = info
}

// RemoveClient removes a websocket connection.
func (h *Hub) RemoveClient(userID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
	}
	delete(h.connInfo, conn)
}

// SendToUser delivers a frame to every live socket of the user, best-effort.
// Sockets that fail the write are closed and removed. Returns the number of
// sockets the frame was written to.
func (h *Hub) SendToUser(userID int, frame any) int {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients[userID]))
	for conn := range h.clients[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return 0
	}

	delivered := 0
	for _, conn := range conns {
		if err := h.writeConn(conn, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveClient(userID, conn)
			h.publishWSError(conn, err)
			continue
		}
		delivered++
	}
	return delivered
}

// writeConn serializes all hub writes. Frames can originate from both the
// socket read loop and REST handler goroutines.
func (h *Hub) writeConn(conn *websocket.Conn, payload []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Hub) publishWSError(conn *websocket.Conn, err error) {
	h.mu.RLock()
	info, ok := h.connInfo[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	observability.IncWSEvent("ws_error")
	_ = observability.PublishEvent(context.Background(), "ws_events.chat", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		RequestID: info.RequestID,
		TraceID:   info.TraceID,
		Payload: map[string]any{
			"ws": map[string]any{
				"event":       "ws_error",
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      err.Error(),
			},
			"identity": map[string]any{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	})
}
