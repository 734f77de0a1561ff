package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/thingy-gateway/internal/device"
	"github.com/nerrad567/thingy-gateway/internal/infrastructure/config"
	"github.com/nerrad567/thingy-gateway/internal/infrastructure/logging"
)

// WebSocket defaults used when the stream config leaves them unset.
const (
	defaultWSMaxMessageSize = 4096
	defaultWSPingInterval   = 30 * time.Second
	defaultWSPongTimeout    = 10 * time.Second
)

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// Hub tracks live WebSocket connections so they can be counted and closed
// on shutdown. Hijacked connections are invisible to http.Server.Shutdown.
type Hub struct {
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	closed  bool
	mu      sync.RWMutex
}

// WSClient is one WebSocket connection streaming a device's LED state.
type WSClient struct {
	conn   *websocket.Conn
	device device.Identity
	sub    *device.Subscriber
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub. Once the hub has closed, the client's
// subscription is ended instead, so its write pump closes the connection.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		client.sub.Close()
		h.logger.Debug("websocket client refused, hub closed", "device_id", string(client.device))
		return
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "device_id", string(client.device), "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", "device_id", string(client.device), "clients", h.ClientCount())
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll ends every client's subscription; its write pump then sends a
// close frame and tears the connection down.
func (h *Hub) closeAll() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.sub.Close()
	}
}

// handleLEDWebSocket upgrades the connection and streams LED states as
// JSON text frames, starting with the current state.
func (s *Server) handleLEDWebSocket(w http.ResponseWriter, r *http.Request) {
	id, ok := thingID(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sub, _ := s.broadcaster.Subscribe(id)
	client := &WSClient{conn: conn, device: id, sub: sub}
	s.hub.Register(client)

	cfg := wsSettings(s.streamCfg)
	go client.readPump(cfg)
	go client.writePump(s.hub, cfg)
}

type wsConfig struct {
	maxMessageSize int64
	pingInterval   time.Duration
	pongWait       time.Duration
}

func wsSettings(cfg config.StreamConfig) wsConfig {
	ws := wsConfig{
		maxMessageSize: int64(cfg.MaxMessageSize),
		pingInterval:   time.Duration(cfg.PingInterval) * time.Second,
		pongWait:       time.Duration(cfg.PongTimeout) * time.Second,
	}
	if ws.maxMessageSize <= 0 {
		ws.maxMessageSize = defaultWSMaxMessageSize
	}
	if ws.pingInterval <= 0 {
		ws.pingInterval = defaultWSPingInterval
	}
	if ws.pongWait <= 0 {
		ws.pongWait = defaultWSPongTimeout
	}
	return ws
}

// readPump consumes control frames. Clients do not send data; any read
// error, including a normal close, ends the subscription.
func (c *WSClient) readPump(cfg wsConfig) {
	defer c.sub.Close()

	c.conn.SetReadLimit(cfg.maxMessageSize)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(cfg.pingInterval + cfg.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.pingInterval + cfg.pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		//nolint:errcheck // Any client frame counts as liveness
		c.conn.SetReadDeadline(time.Now().Add(cfg.pingInterval + cfg.pongWait))
	}
}

// writePump forwards subscriber states and pings until the subscription
// ends.
func (c *WSClient) writePump(hub *Hub, cfg wsConfig) {
	defer func() {
		hub.Unregister(c)
		c.sub.Close()
		c.conn.Close()
	}()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.pingInterval)
		state, err := c.sub.Next(ctx)
		cancel()

		//nolint:errcheck // Best-effort deadline; write error caught below
		c.conn.SetWriteDeadline(time.Now().Add(cfg.pongWait))

		switch {
		case err == nil:
			if err := c.conn.WriteJSON(state); err != nil {
				return
			}
		case errors.Is(err, context.DeadlineExceeded):
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		default:
			//nolint:errcheck // Best-effort close message
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"))
			return
		}
	}
}
