package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now (should be restricted in production)
	},
}

// Client represents a WebSocket client subscribed to one simulation
type Client struct {
	SimulationID string
	Conn         *websocket.Conn
	Send         chan []byte
	Hub          *Hub
}

// Hub maintains active WebSocket connections and routes simulation
// progress updates to subscribers
type Hub struct {
	clients     map[*Client]bool
	subscribers map[string][]*Client
	broadcast   chan []byte
	register    chan *Client
	unregister  chan *Client
	logger      *logrus.Logger
	mutex       sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		subscribers: make(map[string][]*Client),
		broadcast:   make(chan []byte, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		logger:      logger,
	}
}

// Run starts the hub and handles client registration/unregistration
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.subscribers[client.SimulationID] = append(h.subscribers[client.SimulationID], client)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"simulation_id": client.SimulationID,
				"total_clients": len(h.clients),
			}).Info("WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			h.evictLocked(client)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"simulation_id": client.SimulationID,
				"total_clients": len(h.clients),
			}).Info("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					h.evictLocked(client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// evictLocked drops a client from both registries and closes its send
// channel. The caller must hold the write lock; a second eviction of
// the same client is a no-op.
func (h *Hub) evictLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)

	subs := h.subscribers[client.SimulationID]
	for i, c := range subs {
		if c == client {
			h.subscribers[client.SimulationID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subscribers[client.SimulationID]) == 0 {
		delete(h.subscribers, client.SimulationID)
	}
}

// HandleWebSocket handles WebSocket connections on /ws/simulations/:id
func (h *Hub) HandleWebSocket(c *gin.Context) {
	simulationID := c.Param("id")
	if simulationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing simulation ID"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		SimulationID: simulationID,
		Conn:         conn,
		Send:         make(chan []byte, 256),
		Hub:          h,
	}

	client.Hub.register <- client

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// BroadcastToSimulation sends a message to all subscribers of a simulation
func (h *Hub) BroadcastToSimulation(simulationID string, message interface{}) {
	h.mutex.RLock()
	clients := append([]*Client(nil), h.subscribers[simulationID]...)
	h.mutex.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal WebSocket message")
		return
	}

	// Evicting a slow consumer mutates both registries, so the whole
	// delivery pass runs under the write lock. Sends are non-blocking
	// and the membership check skips clients evicted since the
	// snapshot above.
	h.mutex.Lock()
	for _, client := range clients {
		if _, ok := h.clients[client]; !ok {
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.evictLocked(client)
		}
	}
	h.mutex.Unlock()
}

// BroadcastToAll sends a message to all connected clients
func (h *Hub) BroadcastToAll(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal WebSocket message")
		return
	}

	h.broadcast <- data
}

// GetConnectionCount returns the total number of active connections
func (h *Hub) GetConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.WithError(err).Error("WebSocket error")
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.Hub.logger.WithError(err).Error("Failed to write WebSocket message")
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
