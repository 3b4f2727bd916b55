package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket message types.
const (
	MsgWelcome      = "welcome"
	MsgProgress     = "progress"
	MsgCacheCleared = "cache_cleared"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSClient represents a single WebSocket connection.
type WSClient struct {
	ID   string
	hub  *WSHub
	send chan WSMessage
}

// WSHub fans messages out to connected clients. The client set is owned by
// the Run goroutine.
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}

	mu    sync.RWMutex
	count int
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
	}
}

// Run starts the hub event loop and returns when ctx is done, closing every
// client's send channel.
func (h *WSHub) Run(ctx context.Context) {
	defer func() {
		for client := range h.clients {
			h.drop(client)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = true
			h.setCount()
		case client := <-h.unregister:
			h.drop(client)
		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client; disconnect
					h.drop(client)
				}
			}
		}
	}
}

func (h *WSHub) drop(client *WSClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.setCount()
}

func (h *WSHub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

// Broadcast sends a message to all connected WebSocket clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop message if broadcast channel is full
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Register adds a client to the hub. After the hub has stopped the client's
// send channel is closed instead.
func (h *WSHub) Register(client *WSClient) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// handleWebSocket upgrades the connection and streams hub messages to it.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &WSClient{
		ID:   uuid.NewString(),
		hub:  s.wsHub,
		send: make(chan WSMessage, 256),
	}
	client.send <- WSMessage{Type: MsgWelcome, Data: map[string]string{"client_id": client.ID}}

	s.wsHub.Register(client)
	s.log.WithField("client_id", client.ID).Debug("websocket client connected")

	go s.wsWritePump(conn, client)
	go s.wsReadPump(conn, client)
}

// wsReadPump drains client frames until the connection closes. The stream is
// one-way, so message contents are ignored.
func (s *Server) wsReadPump(conn *websocket.Conn, client *WSClient) {
	defer func() {
		client.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.WithError(err).WithField("client_id", client.ID).Warn("websocket read error")
			}
			break
		}
	}
}

// wsWritePump pumps messages from the hub to the WebSocket connection.
func (s *Server) wsWritePump(conn *websocket.Conn, client *WSClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
