// Package main provides the optional websocket observability transport for
// the sync core: it fans the Sync Engine's lifecycle events and the Local
// Store's per-table change streams out to any connected browser/CLI
// observer. The core itself works without this; it exists purely so an
// external dashboard can watch a sync cycle happen.
//
// Grounded on the teacher's cmd/desktop/websocket.go Hub (the
// register/unregister/broadcast channel triad, its run() goroutine, and the
// BroadcastSyncStarted/Progress/Completed/Failed method family), with the
// teacher's analysis/export/import event families dropped (no analogue in
// this domain) and a new per-table event family added to carry the Local
// Store's change streams over the same transport.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mohamed352/edusync/internal/syncengine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return r.Host == "localhost" || r.Host == "localhost:8090"
	},
}

// WSClient represents one websocket observer connection.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub
}

// WSHub maintains active observer connections and fans out broadcasts. It
// also implements syncengine.EventHandler, so it can be installed directly
// via Engine.SetEventHandler.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
}

// WSEnvelope wraps every message sent over the transport.
type WSEnvelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

const (
	EventSyncStarted   = "sync.started"
	EventSyncProgress  = "sync.progress"
	EventSyncCompleted = "sync.completed"
	EventSyncFailed    = "sync.failed"

	EventUsersUpdated        = "users.updated"
	EventLessonsUpdated      = "lessons.updated"
	EventProgressesUpdated   = "progresses.updated"
	EventJournalCountUpdated = "journal_count.updated"
)

// NewWSHub creates a WSHub and starts its dispatch loop.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
	go hub.run()
	return hub
}

func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			log.Printf("[WS] observer connected: %s (total: %d)", client.id, len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("[WS] observer disconnected: %s (total: %d)", client.id, len(h.clients))

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast wraps payload in a WSEnvelope tagged messageType and sends it
// to every connected observer.
func (h *WSHub) Broadcast(messageType string, payload []byte) {
	if payload == nil {
		payload = []byte("null")
	}
	envelope := WSEnvelope{Type: messageType, Data: payload, Timestamp: time.Now().Unix()}
	data, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("[WS] failed to marshal envelope: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("[WS] broadcast channel full, dropping %s", messageType)
	}
}

// RelayTable forwards raw per-table broadcast payloads (already JSON) under
// eventType, so Hub.Broadcast needs no re-marshaling for store snapshots.
func (h *WSHub) RelayTable(eventType string, payload []byte) {
	h.Broadcast(eventType, payload)
}

// syncengine.EventHandler implementation.

func (h *WSHub) OnSyncStarted() {
	h.Broadcast(EventSyncStarted, []byte(`{"status":"started"}`))
}

func (h *WSHub) OnSyncProgress(phase string, uploaded, downloaded, conflicts int) {
	data, _ := json.Marshal(map[string]interface{}{
		"phase": phase, "uploaded": uploaded, "downloaded": downloaded, "conflicts": conflicts,
	})
	h.Broadcast(EventSyncProgress, data)
}

func (h *WSHub) OnSyncCompleted(result syncengine.CycleResult) {
	data, _ := json.Marshal(result)
	h.Broadcast(EventSyncCompleted, data)
}

func (h *WSHub) OnSyncFailed(err error) {
	data, _ := json.Marshal(map[string]interface{}{"error": err.Error()})
	h.Broadcast(EventSyncFailed, data)
}

var _ syncengine.EventHandler = (*WSHub)(nil)

// readPump drains and discards inbound frames (this transport is
// observe-only), closing the connection on any read error.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] read error: %v", err)
			}
			break
		}
	}
}

// writePump pumps queued messages and keepalive pings to the connection.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleWebSocket upgrades the request and registers a new observer client.
func HandleWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[WS] failed to upgrade: %v", err)
			return
		}

		client := &WSClient{
			id:   time.Now().Format("20060102150405") + "-" + r.RemoteAddr,
			conn: conn,
			send: make(chan []byte, 256),
			hub:  hub,
		}
		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}
