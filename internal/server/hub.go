package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"stemchat/internal/domain"
	"stemchat/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (configure CORS for production)
	},
}

// Hub fans chat events out to connected WebSocket clients. It satisfies
// domain.Broadcaster; delivery is best-effort, a failed write only drops
// that client's copy.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*wsClient
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, clients: make(map[string]*wsClient)}
}

// Broadcast sends the event to every connected client.
func (h *Hub) Broadcast(ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("event marshal failed", "type", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, client := range h.clients {
		if err := client.write(data); err != nil {
			h.logger.Debug("websocket write failed", "client_id", id, "error", err)
		}
	}
}

// HandleWS upgrades the connection and registers the client. Clients are not
// expected to send messages; anything received is echoed back as an ack.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.NewString()
	client := &wsClient{conn: conn}

	h.mu.Lock()
	h.clients[clientID] = client
	h.mu.Unlock()
	metrics.WSConnections.Inc()
	h.logger.Info("websocket client connected", "client_id", clientID)

	defer func() {
		h.mu.Lock()
		delete(h.clients, clientID)
		h.mu.Unlock()
		metrics.WSConnections.Dec()
		conn.Close()
		h.logger.Info("websocket client disconnected", "client_id", clientID)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Error("websocket read error", "error", err)
			}
			return
		}
		ack, _ := json.Marshal(map[string]string{"type": "ack", "echo": string(message)})
		if err := client.write(ack); err != nil {
			return
		}
	}
}

// CloseAll disconnects every client, used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.conn.Close()
		delete(h.clients, id)
	}
}
