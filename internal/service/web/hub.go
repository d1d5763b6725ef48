package web

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"cadverse/internal/shared/logger"
)

const (
	writeWait      = 5 * time.Second
	broadcastQueue = 16
)

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
}

func (c *client) remote() string { return c.conn.RemoteAddr().String() }

// Hub maintains the set of active clients and broadcasts model states to
// them. Only Run writes to client connections.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	count      atomic.Int64
	snapshot   func() ([]byte, error)
	log        zerolog.Logger
}

// NewHub creates a hub. snapshot, when set, produces the message sent to a
// client right after it connects.
func NewHub(snapshot func() ([]byte, error)) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		snapshot:   snapshot,
		log:        logger.WithComponent("Hub"),
	}
}

func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
				_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				h.remove(c)
			}
			return nil
		case c := <-h.register:
			h.clients[c] = true
			h.count.Add(1)
			h.log.Info().Str("client_id", c.id.String()).Str("remote_addr", c.remote()).Msg("WebSocket client registered.")
			if h.snapshot != nil {
				payload, err := h.snapshot()
				if err != nil {
					h.log.Error().Err(err).Msg("Failed to encode snapshot")
				} else {
					h.write(c, payload)
				}
			}
		case c := <-h.unregister:
			h.remove(c)
		case message := <-h.broadcast:
			for c := range h.clients {
				h.write(c, message)
			}
		}
	}
}

func (h *Hub) write(c *client, message []byte) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		h.log.Warn().Err(err).Str("client_id", c.id.String()).Msg("Error writing to websocket client.")
		h.remove(c)
	}
}

func (h *Hub) remove(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.count.Add(-1)
	c.conn.Close()
	h.log.Info().Str("client_id", c.id.String()).Str("remote_addr", c.remote()).Msg("WebSocket client unregistered.")
}

// BroadcastModelStates queues payload for every connected client. It never
// blocks; a full queue drops the payload.
func (h *Hub) BroadcastModelStates(payload []byte) {
	select {
	case h.broadcast <- payload:
	default:
		h.log.Warn().Msg("Broadcast channel is full, skipping model states.")
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWs upgrades the request and registers the connection with the hub.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to upgrade websocket")
		return
	}
	c := &client{id: uuid.New(), conn: conn}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	// read pump: logs inbound text and detects disconnects
	go func() {
		defer func() {
			select {
			case h.unregister <- c:
			case <-h.done:
			}
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.log.Warn().Err(err).Str("client_id", c.id.String()).Msg("Unexpected websocket close error")
				}
				return
			}
			h.log.Info().Str("client_id", c.id.String()).Str("message", string(data)).Msg("Message from client")
		}
	}()
}
