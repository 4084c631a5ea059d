package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send small control frames.
	maxMessageSize = 4 * 1024

	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub keeps the connected clients of every user and pushes feedback events
// to them. A user may hold several connections at once.
type Hub struct {
	// Registered clients, keyed by user ID.
	clients map[string]map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("user_id", client.userID),
				zap.String("client_id", client.id))

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Info("Client unregistered",
				zap.String("user_id", client.userID),
				zap.String("client_id", client.id))

		case <-h.done:
			h.mu.Lock()
			for userID, set := range h.clients {
				for client := range set {
					close(client.send)
				}
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and closes every client connection
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := set[client]; ok {
		delete(set, client)
		close(client.send)
	}
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

// ClientCount returns the number of open connections of a user
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// NotifyFeedbackReady pushes event to every connection of the user. Delivery
// is best effort: users without a connection and clients with a full send
// buffer miss the event and can still poll the feedback endpoint.
func (h *Hub) NotifyFeedbackReady(userID string, event domain.FeedbackReadyEvent) {
	if event.Type == "" {
		event.Type = domain.EventTypeFeedbackReady
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to encode feedback event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.clients[userID]
	if len(set) == 0 {
		h.logger.Debug("No connected client for feedback event",
			zap.String("user_id", userID),
			zap.String("message_id", event.MessageID))
		return
	}
	for client := range set {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("Dropping feedback event, client send buffer full",
				zap.String("user_id", userID),
				zap.String("client_id", client.id))
		}
	}
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound text frames.
	send chan []byte

	id     string
	userID string

	logger *zap.Logger
}

// ServeWS upgrades the request and registers the connection for userID.
// Authentication happens before this is called.
func (h *Hub) ServeWS(c echo.Context, userID string) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		id:     uuid.NewString(),
		userID: userID,
		logger: h.logger,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump reads control frames until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Ignoring non-text frame", zap.Int("type", messageType))
			continue
		}
		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage answers application level pings and reports bad frames
func (c *Client) processMessage(message []byte) {
	var reply interface{}

	msg, err := ParseClientMessage(message)
	switch {
	case err != nil:
		c.logger.Warn("Invalid client message",
			zap.String("client_id", c.id),
			zap.Error(err))
		reply = CreateErrorMessage("invalid_message", err.Error())
	case msg.Type == MessageTypePing:
		reply = CreatePongMessage(msg.Data)
	default:
		return
	}

	payload, err := json.Marshal(reply)
	if err != nil {
		c.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.userID][c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("Dropping reply, client send buffer full", zap.String("client_id", c.id))
	}
}
