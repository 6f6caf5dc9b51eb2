package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"expeditor/internal/bus"
	"expeditor/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // boards are same-origin in deployment, open in development
	},
}

// Envelope wraps an event with its topic for websocket clients.
type Envelope struct {
	Topic string      `json:"topic"`
	Event interface{} `json:"event"`
}

// Hub bridges the notifier's lifecycle topics onto websocket connections so
// board views re-render on events instead of polling.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]bool
	unsubs  []func()
	logger  zerolog.Logger
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub subscribes to every lifecycle topic and fans events out to
// connected clients.
func NewHub(notifier bus.Notifier, logger zerolog.Logger) *Hub {
	h := &Hub{
		clients: make(map[*wsClient]bool),
		logger:  logger.With().Str("component", "ws").Logger(),
	}
	for _, topic := range []string{
		models.TopicOrders, models.TopicOrderItems, models.TopicTimers, models.TopicMenu,
	} {
		topic := topic
		h.unsubs = append(h.unsubs, notifier.Subscribe(topic, func(event interface{}) {
			h.broadcast(topic, event)
		}))
	}
	return h
}

// HandleWS upgrades the request and attaches the connection to the hub.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 256),
	}
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	go h.writePump(client)
	go h.readPump(client)
}

// Close detaches from the notifier and drops every connection.
func (h *Hub) Close() {
	for _, unsub := range h.unsubs {
		unsub()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) broadcast(topic string, event interface{}) {
	data, err := json.Marshal(Envelope{Topic: topic, Event: event})
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("failed to marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn().Msg("websocket buffer full, dropping event")
		}
	}
}

func (h *Hub) drop(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		delete(h.clients, client)
		close(client.send)
	}
}

// readPump discards inbound frames; the feed is one-way. It exists to
// process control frames and detect closed connections.
func (h *Hub) readPump(client *wsClient) {
	defer func() {
		h.drop(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug().Err(err).Msg("websocket closed")
			}
			return
		}
	}
}

// writePump pumps events to the connection and keeps it alive with pings.
func (h *Hub) writePump(client *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
