package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"

	"github.com/justic/shortsgen/internal/model"
)

// Client is one subscriber to a task's status feed. Send is never closed;
// Done reports when the hub has dropped the client.
type Client struct {
	TaskID string
	Conn   *websocket.Conn
	Send   chan []byte

	done     chan struct{}
	doneOnce sync.Once
}

// NewClient creates a subscriber with a buffered outbox
func NewClient(taskID string, conn *websocket.Conn) *Client {
	return &Client{
		TaskID: taskID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		done:   make(chan struct{}),
	}
}

// Done is closed once the client is unregistered or evicted
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) evict() {
	c.doneOnce.Do(func() { close(c.done) })
}

// deliver queues data without blocking. It reports false when the client
// is gone or its outbox is full.
func (c *Client) deliver(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Hub fans task status changes out to websocket subscribers
type Hub struct {
	// Clients grouped by task ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	quit       chan struct{}

	logger zerolog.Logger
	mu     sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	TaskID  string
	Message []byte
}

// NewHub creates a new Hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		quit:       make(chan struct{}),
		logger:     logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Run starts the hub's main loop and returns when ctx is done, dropping
// every client. It must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.TaskID] == nil {
				h.clients[client.TaskID] = make(map[*Client]bool)
			}
			h.clients[client.TaskID][client] = true
			h.mu.Unlock()
			h.logger.Debug().Str("task_id", client.TaskID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.logger.Debug().Str("task_id", client.TaskID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.TaskID] {
				if !client.deliver(msg.Message) {
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	close(h.quit)
	for taskID, clients := range h.clients {
		for client := range clients {
			client.evict()
		}
		delete(h.clients, taskID)
	}
}

// remove must be called with mu held
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.TaskID]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		client.evict()
		if len(clients) == 0 {
			delete(h.clients, client.TaskID)
		}
	}
}

// Register adds a new client. Once the hub has stopped the client is
// dropped immediately.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.evict()
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
		client.evict()
	}
}

// Subscribers returns the number of clients watching a task
func (h *Hub) Subscribers(taskID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[taskID])
}

// BroadcastStatus notifies subscribers that a task changed status
func (h *Hub) BroadcastStatus(taskID string, status model.Status, videoKey string) {
	h.send(taskID, model.WSStatusMessage{
		Type:     model.WSMessageTypeStatus,
		TaskID:   taskID,
		Status:   status,
		VideoKey: videoKey,
	})
}

// BroadcastError sends an error message to all task subscribers
func (h *Hub) BroadcastError(taskID string, code, message string) {
	h.send(taskID, model.WSErrorMessage{
		Type:   model.WSMessageTypeError,
		TaskID: taskID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

// send never blocks the caller; a full broadcast buffer drops the message
func (h *Hub) send(taskID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal websocket message")
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{TaskID: taskID, Message: data}:
	default:
		h.logger.Warn().Str("task_id", taskID).Msg("broadcast buffer full, message dropped")
	}
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, taskID string) {
	client := NewClient(taskID, c)

	h.Register(client)
	defer h.Unregister(client)

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-client.done:
				_ = c.WriteMessage(websocket.CloseMessage, []byte{})
				return

			case message := <-client.Send:
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("task_id", taskID).Msg("websocket error")
			}
			break
		}
		h.handleMessage(client, message)
	}
}

// handleMessage answers client pings. Other messages are ignored.
func (h *Hub) handleMessage(client *Client, message []byte) {
	var msg model.WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Type != model.WSMessageTypePing {
		return
	}
	data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
	if !client.deliver(data) {
		h.logger.Debug().Str("task_id", client.TaskID).Msg("pong dropped")
	}
}
